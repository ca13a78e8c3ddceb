package catalog

const queryProducts = `
  query Products($search: String, $cat: [String], $first: Int!, $after: String) {
    products(where: { search: $search, categoryIn: $cat }, first: $first, after: $after) {
      nodes {
        id
        databaseId
        slug
        name
        type
        description
        shortDescription
        image { sourceUrl altText }
        productCategories { nodes { slug name } }
        ... on SimpleProduct { price regularPrice salePrice stockQuantity stockStatus }
        ... on VariableProduct { price regularPrice salePrice stockQuantity stockStatus }
      }
      pageInfo { hasNextPage endCursor }
    }
  }
`

const queryCategories = `
  query Categories {
    productCategories(first: 100, where: { hideEmpty: true }) {
      nodes { id databaseId name slug }
    }
  }
`

const queryProduct = `
  query Product($slug: ID!) {
    product(id: $slug, idType: SLUG) {
      id
      databaseId
      slug
      name
      description
      shortDescription
      image { sourceUrl altText }
      productCategories { nodes { slug name } }
      ... on SimpleProduct { price regularPrice salePrice stockQuantity stockStatus }
      ... on VariableProduct { price regularPrice salePrice stockQuantity stockStatus }
    }
  }
`
