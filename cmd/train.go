package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"gridlearn/episode"

	"github.com/gosuri/uilive"
	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"
)

const progressInterval = 100 * time.Millisecond

func TrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train headless until the episode count or the training deadline is reached",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return train(ctx, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&episodes, "episodes", 0, "Number of episodes to train; 0 runs until the deadline or an interrupt")
	cmd.Flags().StringVar(&dumpPath, "dump", "", "Write the learned table in readable form to this file")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Skip the final checkpoint")

	return cmd
}

func train(ctx context.Context, out io.Writer) error {
	sess, err := newSession(ctx)
	if err != nil {
		return err
	}

	trainCtx, cancel, err := sess.cfg.Training.WithTrainingDeadline(ctx)
	if err != nil {
		_ = sess.closeStore()
		return fmt.Errorf("training deadline: %w", err)
	}
	defer cancel()

	writer := uilive.New()
	writer.Out = out

	start := time.Now()
	var last time.Time
	var lastScore float64
	ctrl := sess.ctrl
	for trainCtx.Err() == nil && (episodes == 0 || ctrl.Episode() < episodes) {
		res, err := ctrl.Tick(trainCtx)
		if err != nil {
			_ = sess.closeStore()
			return err
		}
		if res.CheckpointErr != nil {
			fmt.Fprintln(out, aurora.Yellow(fmt.Sprintf("checkpoint failed at tick %d: %v", res.Tick, res.CheckpointErr)))
		}
		if !res.Terminal {
			continue
		}
		lastScore = res.Score
		if time.Since(last) >= progressInterval {
			last = time.Now()
			printProgress(writer, ctrl, lastScore)
		}
	}
	printProgress(writer, ctrl, lastScore)

	// The training context may be spent; the final save gets its own.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer saveCancel()
	if err = sess.close(saveCtx); err != nil {
		fmt.Fprintln(out, aurora.Red(err.Error()))
		return err
	}

	if dumpPath != "" {
		if err = os.WriteFile(dumpPath, []byte(sess.table.String()), 0o644); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
	}

	summarize(out, ctrl, time.Since(start))
	return nil
}

func printProgress(writer *uilive.Writer, ctrl *episode.Controller, lastScore float64) {
	history := ctrl.History()
	fmt.Fprintf(writer, "episode %6d  last %9.1f  mean %9.1f  epsilon %.4f  states %d\n",
		ctrl.Episode(), lastScore, history.Mean(), ctrl.Table().Epsilon(), ctrl.Table().Len())
	_ = writer.Flush()
}

func summarize(out io.Writer, ctrl *episode.Controller, elapsed time.Duration) {
	history := ctrl.History()
	line := fmt.Sprintf("run %s: %d episodes in %s, mean %.1f, stddev %.1f",
		ctrl.RunID(), ctrl.Episode(), elapsed.Round(time.Millisecond), history.Mean(), history.StdDev())
	if best, ok := history.Best(); ok {
		line += fmt.Sprintf(", best %.1f", best)
	}
	if history.Mean() >= 0 {
		fmt.Fprintln(out, aurora.Green(line))
	} else {
		fmt.Fprintln(out, aurora.Red(line))
	}
}
