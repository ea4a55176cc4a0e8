package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/theckman/yacspin"

	"github.com/poonai/grimpoteuthis/internal/login"
)

// progress is the part of yacspin the batch login drives.
type progress interface {
	Start() error
	Stop() error
	StopFail() error
	Message(msg string)
	StopMessage(msg string)
	StopFailMessage(msg string)
}

func newSpinner(w io.Writer) (*yacspin.Spinner, error) {
	return yacspin.New(yacspin.Config{
		Writer:            w,
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[11],
		Suffix:            " github",
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
}

// runBatch logs in with the configured credentials. When GitHub asks for
// a one-time password it uses cfg.OTP or reads a line from in.
func runBatch(ctx context.Context, flow *login.Flow, cfg config, sp progress, in io.Reader, out io.Writer) error {
	flow.SetUsername(cfg.Username)
	flow.SetPassword(cfg.Password)
	if !flow.CanSubmitCredentials() {
		return errors.New("GITHUB_USERNAME and GITHUB_PASSWORD must be set for batch login")
	}

	sp.Message("requesting token")
	if err := sp.Start(); err != nil {
		return err
	}
	flow.SubmitCredentials(ctx, cfg.Username, cfg.Password)
	s := flow.Snapshot()

	if s.State == login.AwaitingOTP {
		otp := cfg.OTP
		if strings.TrimSpace(otp) == "" {
			_ = sp.Stop()
			fmt.Fprintf(out, "%s\nOne-time password: ", s.ErrorMessage)
			line, err := bufio.NewReader(in).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading one-time password: %w", err)
			}
			otp = strings.TrimSpace(line)
			if err := sp.Start(); err != nil {
				return err
			}
		}
		sp.Message("sending one-time password")
		if !flow.SubmitOneTimePassword(ctx, otp) {
			sp.StopFailMessage("no one-time password given")
			_ = sp.StopFail()
			return errors.New("no one-time password given")
		}
		s = flow.Snapshot()
	}

	if s.State != login.Authenticated {
		sp.StopFailMessage(s.ErrorMessage)
		_ = sp.StopFail()
		if s.ErrorMessage == "" {
			return errors.New("login failed")
		}
		return errors.New(s.ErrorMessage)
	}
	sp.StopMessage(s.ErrorMessage)
	return sp.Stop()
}
