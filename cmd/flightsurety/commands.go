package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"flightsurety/internal/flight"
	jwttoken "flightsurety/internal/jwt_token"
	"flightsurety/internal/platform/config"
	"flightsurety/pkg/domain"
)

func newFlightKeyCmd() *cobra.Command {
	var airline, code, departure string
	cmd := &cobra.Command{
		Use:   "flight-key",
		Short: "Print the key of a flight without contacting the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := domain.ParsePrincipal(airline)
			if err != nil {
				return fmt.Errorf("--airline: %w", err)
			}
			dep, err := time.Parse(time.RFC3339, departure)
			if err != nil {
				return fmt.Errorf("--departure must be RFC 3339: %w", err)
			}
			key := flight.Key(p, flight.NormalizeCode(code), flight.NormalizeDeparture(dep))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key.String())
			return err
		},
	}
	cmd.Flags().StringVar(&airline, "airline", "", "airline principal (0x-prefixed hex)")
	cmd.Flags().StringVar(&code, "code", "", "flight code")
	cmd.Flags().StringVar(&departure, "departure", "", "scheduled departure, RFC 3339")
	_ = cmd.MarkFlagRequired("airline")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("departure")
	return cmd
}

func newTokenCmd(load func() (config.Config, error)) *cobra.Command {
	var (
		principal string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a principal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			p, err := domain.ParsePrincipal(principal)
			if err != nil {
				return fmt.Errorf("--principal: %w", err)
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			svc := jwttoken.NewJWTService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
			token, err := svc.GenerateAccessToken(p, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&principal, "principal", "", "principal the token authenticates (0x-prefixed hex)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	_ = cmd.MarkFlagRequired("principal")
	return cmd
}
