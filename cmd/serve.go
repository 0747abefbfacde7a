package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"gridlearn/server"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func ServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Train continuously while serving live tick results and commands over http",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return serve(ctx, cmd)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address; overrides the config")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Skip the final checkpoint")

	return cmd
}

func serve(ctx context.Context, cmd *cobra.Command) error {
	sess, err := newSession(ctx)
	if err != nil {
		return err
	}
	if addr != "" {
		sess.cfg.Server.Addr = addr
	}

	driver := server.NewDriver(sess.ctrl, server.DriverConfig{
		TickInterval: sess.cfg.Server.TickInterval,
		Logger:       sess.logger,
	})
	srv := server.NewServer(sess.cfg.Server.Addr, driver, sess.logger)
	cmd.Println(aurora.Cyan("serving run " + sess.ctrl.RunID() + " on " + sess.cfg.Server.Addr))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return driver.Run(groupCtx)
	})
	group.Go(func() error {
		return srv.Serve(groupCtx)
	})
	runErr := group.Wait()

	// The driver goroutine has exited, so the table is no longer being written.
	saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err = sess.close(saveCtx); err != nil {
		cmd.PrintErrln(aurora.Red(err.Error()))
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
