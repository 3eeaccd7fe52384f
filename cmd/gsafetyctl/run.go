package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
	"github.com/gordian-engine/grandpa-accountable-safety/gsdriver"
)

// Exit codes per the external interface's CLI harness contract.
const (
	exitSuccess            = 0
	exitInvalidInput       = 2
	exitTimeoutByzantine   = 3
	exitInvariantViolation = 4
)

func newRunCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run <scenario.json>",
		Short: "Drive a scenario file through open/submit_response/tick to a verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			code, err := runScenario(log, args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			os.Exit(code)
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "log every step at debug level")
	return cmd
}

func runScenario(log *slog.Logger, path string) (int, error) {
	sc, err := loadScenario(path)
	if err != nil {
		return exitInvalidInput, err
	}

	in, err := sc.buildOpenInput()
	if err != nil {
		return exitInvalidInput, err
	}

	base := time.Unix(0, 0)

	sess, err := gsdriver.Open(1, in, base)
	if err != nil {
		var iie *gsdriver.InputInvariantError
		if errors.As(err, &iie) {
			return exitInvalidInput, fmt.Errorf("open rejected: %w", err)
		}
		return exitInvariantViolation, fmt.Errorf("open failed: %w", err)
	}
	log.Info("Session opened", "instance", sess.ID)

	ids := sc.voterIDs()

	for _, st := range sc.Steps {
		now := base.Add(time.Duration(st.AtSeconds) * time.Second)

		switch st.Type {
		case "submit_response":
			responder, ok := ids[st.Responder]
			if !ok {
				return exitInvalidInput, fmt.Errorf("unknown responder %q", st.Responder)
			}
			kind, err := parseVoteKind(st.Kind)
			if err != nil {
				return exitInvalidInput, err
			}
			votes, err := sc.resolveVotes(ids, st.Round, kind, st.Votes)
			if err != nil {
				return exitInvalidInput, err
			}

			err = gsdriver.SubmitResponse(sess, responder, gsconsensus.RoundNumber(st.Round), votes, now)
			if err != nil {
				var ive *gsdriver.InvariantViolationError
				if errors.As(err, &ive) {
					return exitInvariantViolation, fmt.Errorf("invariant violation: %w", err)
				}
				log.Warn("Response rejected", "responder", st.Responder, "round", st.Round, "err", err)
				continue
			}
			log.Info("Response admitted", "responder", st.Responder, "round", st.Round)

		case "tick":
			if err := gsdriver.Tick(sess, now); err != nil {
				var ive *gsdriver.InvariantViolationError
				if errors.As(err, &ive) {
					return exitInvariantViolation, fmt.Errorf("invariant violation: %w", err)
				}
				return exitInvariantViolation, err
			}

		case "abort":
			if err := gsdriver.Abort(sess); err != nil {
				return exitInvariantViolation, err
			}

		default:
			return exitInvalidInput, fmt.Errorf("unknown step type %q", st.Type)
		}
	}

	snap := sess.Snapshot()
	out, err := json.MarshalIndent(snap, "", "  ")
	if err == nil {
		fmt.Println(string(out))
	}

	if snap.Verdict == nil {
		return exitSuccess, nil
	}
	switch snap.Verdict.Kind {
	case gsdriver.VerdictByzantine:
		return exitTimeoutByzantine, nil
	default:
		return exitSuccess, nil
	}
}
