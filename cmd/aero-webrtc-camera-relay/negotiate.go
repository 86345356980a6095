package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/sdprelay"
)

// maxOfferFileBytes bounds offers read from a file or stdin.
const maxOfferFileBytes = 1 << 20

func newNegotiateCmd(lookup lookupFunc) *cobra.Command {
	var (
		offerFile string
		retries   int
	)

	cmd := &cobra.Command{
		Use:   "negotiate <camera-id|stream-url>",
		Short: "Send one SDP offer to the relay and print the answer",
		Long: "Reads an SDP offer from --offer-file (or stdin) and negotiates it with the relay for the\n" +
			"given configured camera or stream URL. The answer SDP is written to stdout.\n" +
			"With --retries, an unreachable relay is retried with the same offer. Timeouts and closed\n" +
			"sessions are final since the relay may already have answered the offer.",
		Args: cobra.ExactArgs(1),
	}
	loader, loaderErr := config.NewLoader(lookup, cmd.Flags())
	cmd.Flags().StringVar(&offerFile, "offer-file", "-", "File holding the SDP offer; - reads stdin")
	cmd.Flags().IntVar(&retries, "retries", 0, "Retries while the relay is unreachable")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if loaderErr != nil {
			return loaderErr
		}
		if retries < 0 {
			return errors.New("--retries must be >= 0")
		}
		cfg, err := loader.Load()
		if err != nil {
			return err
		}
		// stdout carries the answer.
		logger, err := config.NewLoggerTo(cmd.ErrOrStderr(), cfg)
		if err != nil {
			return err
		}

		offer, err := readOffer(cmd.InOrStdin(), offerFile)
		if err != nil {
			return err
		}
		source := resolveSource(cfg, args[0])

		client, err := sdprelay.NewClient(cfg.RelayClientConfig(logger))
		if err != nil {
			return fmt.Errorf("configure relay client: %w", err)
		}

		b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries))
		res, err := sdprelay.RetrySameOffer(cmd.Context(), client, source, offer, cfg.RelayTimeout, b)
		if err != nil {
			return fmt.Errorf("negotiate %s: %w", sdprelay.RedactSource(source), err)
		}
		logger.Debug("negotiated", "source", sdprelay.RedactSource(source), "attempts", res.Attempts)

		answer := res.Answer
		if !strings.HasSuffix(answer, "\n") {
			answer += "\n"
		}
		_, err = io.WriteString(cmd.OutOrStdout(), answer)
		return err
	}
	return cmd
}

func readOffer(stdin io.Reader, path string) (string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, maxOfferFileBytes+1))
	if err != nil {
		return "", fmt.Errorf("read offer: %w", err)
	}
	if len(data) > maxOfferFileBytes {
		return "", fmt.Errorf("offer exceeds %d bytes", maxOfferFileBytes)
	}
	offer := string(data)
	if strings.TrimSpace(offer) == "" {
		return "", errors.New("empty offer")
	}
	return offer, nil
}

// resolveSource maps a configured camera ID to its stream URL. Anything else
// is used as a URL.
func resolveSource(cfg config.Config, arg string) string {
	for _, c := range cfg.Cameras {
		if c.ID == arg {
			return c.Source
		}
	}
	return arg
}
