package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/epic-fhir-client/auth"
	"github.com/jrsteele09/epic-fhir-client/fhir"
	"github.com/jrsteele09/epic-fhir-client/sessions"
	"github.com/spf13/cobra"
)

func flowFromFlag(name string) (sessions.Flow, error) {
	switch flow := sessions.Flow(strings.ToLower(strings.TrimSpace(name))); flow {
	case sessions.HomeFlow, sessions.BulkFlow:
		return flow, nil
	default:
		return "", fmt.Errorf("unknown flow %q (expected %q or %q)", name, sessions.HomeFlow, sessions.BulkFlow)
	}
}

// newBuilder wires a single flow from the loaded configuration
func newBuilder(ctx context.Context, flowName string) (*sessions.Builder, error) {
	flow, err := flowFromFlag(flowName)
	if err != nil {
		return nil, err
	}
	endpoint, err := auth.ResolveEndpoint(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client, err := fhir.NewClientFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return sessions.NewBuilder(flow, cfg, endpoint, client)
}

func authorizeURLCmd() *cobra.Command {
	var flow string
	cmd := &cobra.Command{
		Use:   "authorize-url",
		Short: "Print the authorization URL to open in a browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, err := newBuilder(cmd.Context(), flow)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), builder.Redirector().URL())
			return nil
		},
	}
	cmd.Flags().StringVar(&flow, "flow", string(sessions.HomeFlow), "Login flow: home or bulk")
	return cmd
}

func exchangeCmd() *cobra.Command {
	var flow, code string
	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Exchange an authorization code for an access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, err := newBuilder(cmd.Context(), flow)
			if err != nil {
				return err
			}
			token, err := builder.Exchanger().Exchange(cmd.Context(), code)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("Token exchange failed"))
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, successStyle.Render("Access Token Obtained!"))
			printField(out, "access_token", token.AccessToken)
			if token.HasPatientContext() {
				printField(out, "patient", token.Patient)
			}
			if token.Scope != "" {
				printField(out, "scope", token.Scope)
			}
			if !token.Expiry.IsZero() {
				printField(out, "expires", token.Expiry.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flow, "flow", string(sessions.HomeFlow), "Login flow: home or bulk")
	cmd.Flags().StringVar(&code, "code", "", "Authorization code from the redirect")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func patientCmd() *cobra.Command {
	var token, id string
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Read a Patient resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := fhir.NewClientFromConfig(cfg)
			if err != nil {
				return err
			}
			patient, err := client.Read(cmd.Context(), token, "Patient", id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Patient Record:"))
			if name := patient.DisplayName(); name != "" {
				printField(out, "name", name)
			}
			b, err := json.MarshalIndent(patient, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer access token")
	cmd.Flags().StringVar(&id, "id", "", "Patient id")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
