package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"bookshare/internal/apiclient"
	"bookshare/internal/config"
	"bookshare/internal/library"
	"bookshare/internal/mutation"
	"bookshare/internal/session"
	"bookshare/internal/util"
	"bookshare/pkg/kv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := a.execute(ctx, a.rootCmd()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		stop()
		os.Exit(1)
	}
}

// describe turns err into the text shown to the user.
func describe(err error) string {
	var apiErr *apiclient.APIError
	var validationErr *apiclient.ValidationError
	var transportErr *apiclient.TransportError
	switch {
	case errors.As(err, &apiErr), errors.As(err, &validationErr), errors.As(err, &transportErr),
		errors.Is(err, apiclient.ErrLoginRequired), errors.Is(err, apiclient.ErrMalformedResponse),
		errors.Is(err, context.DeadlineExceeded):
		return apiclient.UserMessage(err)
	default:
		return err.Error()
	}
}

// app holds the services shared by every command.
type app struct {
	cfg      config.FileConfig
	logger   *slog.Logger
	store    kv.Store
	api      *apiclient.Client
	sessions *session.Store
	mutation *mutation.Service
	library  *library.Library

	in         *bufio.Reader
	out        io.Writer
	assumeYes  bool
	configPath string
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bookshare",
		Short:         "Browse, favorite and rate shared books",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			cmd.SetContext(util.ContextWithLogger(cmd.Context(), a.logger.With("command", cmd.Name())))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to bookshare.yaml")
	root.PersistentFlags().BoolVarP(&a.assumeYes, "yes", "y", false, "answer yes to confirmation prompts")

	root.AddCommand(
		registerCmd(a),
		loginCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		feedCmd(a),
		bookCmd(a),
		favoriteCmd(a),
		favoritesCmd(a),
		rateCmd(a),
		myBooksCmd(a),
		deleteCmd(a),
		createCmd(a),
		editCmd(a),
		profileCmd(a),
	)
	return root
}

func (a *app) init(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg
	a.logger = util.InitLogger(cfg.LogLevel)
	a.in = bufio.NewReader(in)
	a.out = out

	kvCfg, err := cfg.KV()
	if err != nil {
		return err
	}
	a.store, err = kv.Open(kvCfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}
	a.api = apiclient.New(cfg.APIURL, apiclient.WithTimeout(cfg.RequestTimeout()))

	a.sessions, err = session.New(session.Config{
		KV:            a.store,
		API:           a.api,
		Logger:        a.logger.With("component", "session"),
		RejectExpired: cfg.RejectExpiredTokens,
	})
	if err != nil {
		return err
	}
	confirmer := mutation.ConfirmFunc(a.confirm)
	a.mutation, err = mutation.New(mutation.Config{
		API:         a.api,
		Credentials: a.sessions,
		Confirmer:   confirmer,
		Logger:      a.logger.With("component", "mutation"),
	})
	if err != nil {
		return err
	}
	a.library, err = library.New(library.Config{
		API:         a.api,
		Credentials: a.sessions,
		Confirmer:   confirmer,
		Logger:      a.logger.With("component", "library"),
	})
	if err != nil {
		return err
	}

	// Storage problems leave the slot signed out; the command still runs.
	if err := a.sessions.RestoreAll(ctx); err != nil {
		a.logger.Warn("restore sessions", "err", err)
	}
	return nil
}

// execute runs root and then closes the store. Cobra skips post-run hooks
// when a command fails, so closing happens here.
func (a *app) execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	return kv.Close(a.store)
}

// confirm asks on the terminal. Anything but y or yes is a no.
func (a *app) confirm(ctx context.Context, p mutation.Prompt) (bool, error) {
	if a.assumeYes {
		return true, nil
	}
	fmt.Fprintf(a.out, "%s\n%s [%s/Cancel] (y/N): ", p.Title, p.Message, p.ConfirmLabel)
	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := a.in.ReadString('\n')
		ch <- answer{line, err}
	}()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case ans := <-ch:
		if ans.err != nil && !errors.Is(ans.err, io.EOF) {
			return false, ans.err
		}
		switch strings.ToLower(strings.TrimSpace(ans.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
