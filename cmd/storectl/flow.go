package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"grene-storefront/internal/config"
	"grene-storefront/internal/flow"
)

func flowCmd(load func() (config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Sign, verify and diagnose Flow gateway parameters",
	}
	cmd.AddCommand(flowSignCmd(load))
	cmd.AddCommand(flowVerifyCmd(load))
	cmd.AddCommand(flowDiagnoseCmd(load))
	return cmd
}

func parseParams(args []string) (flow.Params, error) {
	p := flow.Params{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q, want key=value", a)
		}
		p[k] = v
	}
	return p, nil
}

func signerFrom(load func() (config.Config, error)) (*flow.Signer, error) {
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Flow.SecretKey == "" {
		return nil, errors.New("FLOW_SECRET_KEY is not set")
	}
	return flow.NewSigner(cfg.Flow.SecretKey)
}

func flowSignCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "sign key=value...",
		Short: "Print the signature of a parameter set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(args)
			if err != nil {
				return err
			}
			signer, err := signerFrom(load)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signer.Sign(p))
			return nil
		},
	}
}

func flowVerifyCmd(load func() (config.Config, error)) *cobra.Command {
	var sig string
	cmd := &cobra.Command{
		Use:   "verify --sig <hex> key=value...",
		Short: "Check a signature against a parameter set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(args)
			if err != nil {
				return err
			}
			if sig == "" {
				sig = p[flow.SignatureField]
			}
			if sig == "" {
				return errors.New("no signature given")
			}
			signer, err := signerFrom(load)
			if err != nil {
				return err
			}
			if !signer.Verify(p, sig) {
				return errors.New("signature mismatch")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&sig, "sig", "", "signature to check (defaults to the s parameter)")
	return cmd
}

func flowDiagnoseCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Report whether the Flow configuration is usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			d := flow.Diagnose(flow.Config{
				APIKey:     cfg.Flow.APIKey,
				SecretKey:  cfg.Flow.SecretKey,
				BaseURL:    cfg.Flow.BaseURL,
				AppBaseURL: cfg.AppBaseURL,
			})
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(d); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
			if !d.OK {
				return errors.New("flow configuration has errors")
			}
			return nil
		},
	}
}
