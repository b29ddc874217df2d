package main

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	orchestration "github.com/koscakluka/ema-dialogue/core"
	"github.com/koscakluka/ema-dialogue/internal/transport"
	"github.com/spf13/cobra"
)

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print JSON schemas of the browser websocket protocol",
		Args:  cobra.NoArgs,
		// Schemas do not depend on settings.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded, err := json.MarshalIndent(protocolSchemas(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode schemas: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
}

func protocolSchemas() map[string]*jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}
	return map[string]*jsonschema.Schema{
		"client_message": reflector.Reflect(&transport.ClientMessage{}),
		"server_message": reflector.Reflect(&transport.Envelope{}),
		"session_config": reflector.Reflect(&orchestration.SessionConfig{}),
	}
}
