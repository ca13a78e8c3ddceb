package quotes

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "data", "cotizaciones.json"))
}

func mustRecord(t *testing.T, fields map[string]any) Record {
	t.Helper()
	r, err := NewRecord(fields)
	require.NoError(t, err)
	return r
}

func TestFileStore_AppendThenList(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	start := time.Now().Add(-time.Millisecond)

	saved, err := s.Append(ctx, mustRecord(t, map[string]any{"nombre": "Ana", "email": "ana@example.cl"}))
	require.NoError(t, err)

	list, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)
	assert.Equal(t, "Ana", list[0].Name())

	created, err := list[0].Created()
	require.NoError(t, err)
	assert.False(t, created.Before(start.Truncate(time.Millisecond)))
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s := newTestFileStore(t)
	list, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFileStore_SameMillisecondGetsDistinctIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	fixed := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	a, err := s.Append(ctx, mustRecord(t, map[string]any{"email": "a@x.cl"}))
	require.NoError(t, err)
	b, err := s.Append(ctx, mustRecord(t, map[string]any{"email": "b@x.cl"}))
	require.NoError(t, err)

	assert.Equal(t, fixed.UnixMilli(), a.ID)
	assert.Equal(t, fixed.UnixMilli()+1, b.ID)
	assert.Equal(t, "2026-10-17T12:00:00.000Z", a.CreatedAt)
}

func TestFileStore_UpdateMerges(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	saved, err := s.Append(ctx, mustRecord(t, map[string]any{"nombre": "Ana", "email": "ana@example.cl"}))
	require.NoError(t, err)

	updated, err := s.Update(ctx, saved.ID, map[string]any{
		"estado":    "respondida",
		"email":     "ana@empresa.cl",
		"id":        1,
		"createdAt": "1999-01-01",
		"lineItems": []any{map[string]any{"name": "Letrero LED", "price": 120000, "qty": 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID)
	assert.Equal(t, saved.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Ana", updated.Name())
	assert.Equal(t, "ana@empresa.cl", updated.Email())
	assert.Equal(t, "respondida", updated.String("estado"))
	require.Len(t, updated.LineItems, 1)
	assert.Equal(t, 240000.0, updated.Total())

	got, err := s.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestFileStore_UpdateUnknownIDLeavesFileUnchanged(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	_, err := s.Append(ctx, mustRecord(t, map[string]any{"email": "a@x.cl"}))
	require.NoError(t, err)

	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	_, err = s.Update(ctx, 42, map[string]any{"email": "b@x.cl"})
	assert.ErrorIs(t, err, ErrNotFound)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFileStore_ReadsLegacyFile(t *testing.T) {
	s := newTestFileStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	legacy := `[{"id": 1718000000000, "createdAt": "2024-06-10T06:13:20.000Z", "name": "Luis", "email": "l@x.cl", "budget": 500000, "productId": 77}]`
	require.NoError(t, os.WriteFile(s.Path(), []byte(legacy), 0o644))

	r, err := s.Get(context.Background(), 1718000000000)
	require.NoError(t, err)
	assert.Equal(t, "Luis", r.Name())
	assert.Equal(t, "500000", r.String("budget"))
	assert.Nil(t, r.LineItems)
}

func TestFileStore_NumericSourceID(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	seeded := `[{"id":1,"createdAt":"2026-10-17T12:00:00.000Z","email":"a@x.cl",` +
		`"lineItems":[{"id":"p-1","name":"Panel","price":10,"qty":1,"sourceId":42}]}]`
	require.NoError(t, os.WriteFile(s.Path(), []byte(seeded), 0o644))

	list, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].LineItems, 1)
	it := list[0].LineItems[0]
	assert.Equal(t, "42", it.SourceID())
	assert.Equal(t, "p-1", it.Extra["id"])

	_, err = s.Append(ctx, mustRecord(t, map[string]any{"email": "b@x.cl"}))
	require.NoError(t, err)

	updated, err := s.Update(ctx, 1, map[string]any{
		"lineItems": []any{map[string]any{"id": "p-2", "name": "Letrero", "price": 5, "qty": 2, "sourceId": 77}},
	})
	require.NoError(t, err)
	require.Len(t, updated.LineItems, 1)
	assert.Equal(t, "77", updated.LineItems[0].SourceID())
	assert.Equal(t, 10.0, updated.Total())

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 77.0, got.LineItems[0].Extra["sourceId"])
	assert.Equal(t, "p-2", got.LineItems[0].Extra["id"])
}

func TestList_Search(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	_, _ = s.Append(ctx, mustRecord(t, map[string]any{"nombre": "Ana", "email": "ana@x.cl", "categoria": "Señalética LED"}))
	_, _ = s.Append(ctx, mustRecord(t, map[string]any{"nombre": "Pedro", "email": "p@x.cl",
		"lineItems": []any{map[string]any{"name": "Panel solar", "qty": 1}}}))

	hits, err := s.List(ctx, "señalética")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Ana", hits[0].Name())

	hits, _ = s.List(ctx, "PANEL")
	require.Len(t, hits, 1)
	assert.Equal(t, "Pedro", hits[0].Name())

	hits, _ = s.List(ctx, "nobody")
	assert.Empty(t, hits)
}

func TestRecord_JSONIsFlat(t *testing.T) {
	r := Record{ID: 5, CreatedAt: "2026-01-01T00:00:00.000Z", Fields: map[string]any{"email": "a@x.cl"}}
	b, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, map[string]any{"id": 5.0, "createdAt": "2026-01-01T00:00:00.000Z", "email": "a@x.cl"}, m)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "quotes.db"))
	require.NoError(t, err)
	defer s.Close()

	saved, err := s.Append(ctx, mustRecord(t, map[string]any{"email": "a@x.cl", "nombre": "Ana"}))
	require.NoError(t, err)

	updated, err := s.Update(ctx, saved.ID, map[string]any{"estado": "enviada"})
	require.NoError(t, err)
	assert.Equal(t, "enviada", updated.String("estado"))

	_, err = s.Update(ctx, saved.ID+99, map[string]any{"estado": "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.List(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)
}

type fakeRepo struct {
	Repository
	err error
}

func (f fakeRepo) Append(ctx context.Context, r Record) (Record, error) {
	if f.err != nil {
		return Record{}, f.err
	}
	r.ID = 1
	return r, nil
}

type fakeMailer struct {
	sent []Record
	err  error
}

func (f *fakeMailer) SendQuote(ctx context.Context, r Record) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, r)
	return nil
}

func TestSubmitter(t *testing.T) {
	ctx := context.Background()
	rec := Record{Fields: map[string]any{"email": "a@x.cl"}}
	diskErr := errors.New("read-only file system")
	mailErr := errors.New("smtp down")

	t.Run("disk", func(t *testing.T) {
		m := &fakeMailer{}
		got, err := NewSubmitter(fakeRepo{}, m, nil).Submit(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, SinkDisk, got.Sink)
		assert.Empty(t, m.sent)
	})

	t.Run("email fallback", func(t *testing.T) {
		m := &fakeMailer{}
		got, err := NewSubmitter(fakeRepo{err: diskErr}, m, nil).Submit(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, SinkEmail, got.Sink)
		require.Len(t, m.sent, 1)
		assert.NotEmpty(t, m.sent[0].CreatedAt)
	})

	t.Run("both fail", func(t *testing.T) {
		_, err := NewSubmitter(fakeRepo{err: diskErr}, &fakeMailer{err: mailErr}, nil).Submit(ctx, rec)
		assert.ErrorIs(t, err, diskErr)
		assert.ErrorIs(t, err, mailErr)
	})

	t.Run("no mailer", func(t *testing.T) {
		_, err := NewSubmitter(fakeRepo{err: diskErr}, nil, nil).Submit(ctx, rec)
		assert.ErrorIs(t, err, ErrMailNotConfigured)
	})
}

func TestSMTPMailer_NotConfigured(t *testing.T) {
	err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.cl"}).SendQuote(context.Background(), Record{})
	assert.ErrorIs(t, err, ErrMailNotConfigured)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"minimal", `{"email":"a@x.cl"}`, true},
		{"full", `{"nombre":"Ana","email":"a@x.cl","telefono":"+569","lineItems":[{"name":"Panel","price":1000,"qty":2,"sourceId":"77"}]}`, true},
		{"missing email", `{"nombre":"Ana"}`, false},
		{"bad email", `{"email":"nope"}`, false},
		{"numeric sourceId", `{"email":"a@x.cl","lineItems":[{"name":"Panel","price":1000,"qty":1,"sourceId":77}]}`, true},
		{"zero qty", `{"email":"a@x.cl","lineItems":[{"name":"Panel","qty":0}]}`, false},
		{"not object", `[1,2]`, false},
		{"malformed", `{"email":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]byte(tt.body))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestWriteCSV(t *testing.T) {
	list := []Record{
		{ID: 1, CreatedAt: "2026-01-01T00:00:00.000Z", Fields: map[string]any{"email": "a@x.cl", "nombre": "Ana"}},
		{ID: 2, CreatedAt: "2026-01-02T00:00:00.000Z", Fields: map[string]any{"email": "b@x.cl", "empresa": "ACME, Ltda"},
			LineItems: []LineItem{{Name: "Panel", Price: 1000, Qty: 3}}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, list))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "createdAt", "email", "empresa", "nombre", "items", "total"}, rows[0])
	assert.Equal(t, []string{"2", "2026-01-02T00:00:00.000Z", "b@x.cl", "ACME, Ltda", "", "1", "3000"}, rows[2])
}

func TestWritePDF(t *testing.T) {
	r := Record{ID: 9, CreatedAt: "2026-01-01T00:00:00.000Z",
		Fields:    map[string]any{"nombre": "José Núñez", "email": "j@x.cl"},
		LineItems: []LineItem{{Name: "Señalética", Price: 5000, Qty: 2}}}

	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, r))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
