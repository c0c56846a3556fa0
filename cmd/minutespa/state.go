package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/minutespa/minutespa/internal/config"
	"github.com/minutespa/minutespa/internal/errors"
	"github.com/minutespa/minutespa/pkg/appstate"
	"github.com/minutespa/minutespa/pkg/medium"
)

func stateCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and edit persisted state",
		Long: `Inspect and edit the persisted keys of a store.

Keys live in the configured medium under "<store>.<key>".

Examples:
  minutespa state keys
  minutespa state get user
  minutespa state set theme '"dark"'
  minutespa state set --store prefs volume 7
  minutespa state delete theme
  minutespa state reset --store prefs`,
	}

	cmd.AddCommand(
		stateGetCmd(flags),
		stateSetCmd(flags),
		stateDeleteCmd(flags),
		stateKeysCmd(flags),
		stateResetCmd(flags),
	)
	return cmd
}

// session is an opened store for one CLI invocation.
type session struct {
	cfg     *config.Config
	backend *backend
	bus     *appstate.Bus
}

func openSession(ctx context.Context, flags *globalFlags) (*session, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	b, err := openMedium(ctx, cfg)
	if err != nil {
		return nil, err
	}
	bus := appstate.NewBus(cfg.State.StoreID,
		appstate.WithMedium(b.medium),
		appstate.WithTimeout(cfg.Timeout()))
	return &session{cfg: cfg, backend: b, bus: bus}, nil
}

func (s *session) Close() error {
	return s.backend.Close()
}

// persistedKeys lists the store's keys in the medium, without the store
// prefix.
func (s *session) persistedKeys(ctx context.Context) ([]string, error) {
	lister, ok := s.backend.medium.(medium.Lister)
	if !ok {
		return nil, errors.New("M300").
			WithDetailf("The %s medium cannot list keys", s.cfg.State.Medium)
	}
	prefix := s.bus.Store().PersistKey("")
	full, err := lister.Keys(ctx, prefix)
	if err != nil {
		return nil, errors.New("M021").Wrap(err)
	}
	keys := make([]string, 0, len(full))
	for _, k := range full {
		keys = append(keys, strings.TrimPrefix(k, prefix))
	}
	return keys, nil
}

// parseValue reads a value as JSON, falling back to a plain string.
func parseValue(raw string, asString bool) any {
	if asString {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func stateGetCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of a key as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.Close()

			v, ok := s.bus.Get(args[0])
			if !ok {
				return errors.New("M301").
					WithDetailf("%q in store %q", args[0], s.bus.ID())
			}
			out, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return errors.New("M002").Wrap(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func stateSetCmd(flags *globalFlags) *cobra.Command {
	var (
		persist  bool
		asString bool
	)

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a key",
		Long: `Set a key. The value is parsed as JSON; anything that is not valid
JSON is stored as a string. Use --string to force a string.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.Close()

			var opts []appstate.SetOption
			if persist {
				opts = append(opts, appstate.Persist())
			}
			if _, err := s.bus.Set(args[0], parseValue(args[1], asString), opts...); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Set %s.%s", s.bus.ID(), args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&persist, "persist", "p", true, "Write the value through to the medium")
	cmd.Flags().BoolVar(&asString, "string", false, "Store the value as a string without JSON parsing")

	return cmd
}

func stateDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"rm"},
		Short:   "Delete a key and its persisted copy",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.bus.Delete(args[0]); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Deleted %s.%s", s.bus.ID(), args[0])
			return nil
		},
	}
}

func stateKeysCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "keys",
		Aliases: []string{"ls"},
		Short:   "List the persisted keys of a store",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.Close()

			keys, err := s.persistedKeys(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func stateResetCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every persisted key of a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.Close()

			keys, err := s.persistedKeys(cmd.Context())
			if err != nil {
				return err
			}
			// Reset only purges keys held in memory, so persisted keys go
			// one by one.
			var errs error
			for _, k := range keys {
				errs = multierr.Append(errs, s.bus.Delete(k))
			}
			errs = multierr.Append(errs, s.bus.Reset())
			if errs != nil {
				return errs
			}
			w := cmd.OutOrStdout()
			if len(keys) == 0 {
				warn(w, "Store %q has no persisted keys", s.bus.ID())
				return nil
			}
			success(w, "Reset %s (%d keys)", s.bus.ID(), len(keys))
			return nil
		},
	}
}
