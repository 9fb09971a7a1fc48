package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dogma165/push-notification/internal/config"
	"github.com/dogma165/push-notification/internal/logger"
	"github.com/dogma165/push-notification/internal/service"
	"github.com/dogma165/push-notification/internal/webpush"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Deliver a single push notification",
	Long: `Deliver one push notification and exit. The subscription endpoint and,
for encrypted payloads, its p256dh/auth values are passed as flags.`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().String("endpoint", "", "push endpoint URL (required)")
	sendCmd.Flags().String("p256dh", "", "subscriber public key, base64")
	sendCmd.Flags().String("auth", "", "subscriber auth secret, base64")
	sendCmd.Flags().String("payload", "", "payload to deliver; empty sends a tickle push")
	sendCmd.Flags().Int("ttl", webpush.DefaultTTL, "TTL in seconds")
	sendCmd.Flags().Bool("no-pad", false, "disable automatic payload padding")
	sendCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	_ = sendCmd.MarkFlagRequired("endpoint")
}

func runSend(cmd *cobra.Command, _ []string) error {
	endpoint, _ := cmd.Flags().GetString("endpoint")
	p256dh, _ := cmd.Flags().GetString("p256dh")
	auth, _ := cmd.Flags().GetString("auth")
	payload, _ := cmd.Flags().GetString("payload")
	ttl, _ := cmd.Flags().GetInt("ttl")
	noPad, _ := cmd.Flags().GetBool("no-pad")
	timeout, _ := cmd.Flags().GetInt("timeout")

	log := logger.NewConsole(slog.LevelWarn)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	services, err := config.LoadServices(cfg.ServicesFile)
	if err != nil {
		return err
	}

	transport := webpush.NewHTTPTransport(time.Duration(timeout) * time.Second)
	sender := webpush.New(transport, webpush.NewClassifier(services.Services), log)
	sender.SetTTL(ttl)
	sender.SetAutomaticPadding(!noPad)
	for svc, key := range services.APIKeys {
		sender.SetAPIKey(webpush.ServiceType(svc), key)
	}

	notification, err := buildNotification(endpoint, p256dh, auth, payload)
	if err != nil {
		return err
	}
	if err := sender.Enqueue(notification); err != nil {
		return err
	}

	report, err := sender.Flush(context.Background())
	if err != nil {
		return err
	}

	res := report.Results[0]
	if !res.OK() {
		return fmt.Errorf("delivery failed: %w", res.Err)
	}
	fmt.Fprintf(os.Stdout, "delivered: %s -> %d\n", res.Endpoint, res.StatusCode)
	return nil
}

// buildNotification decodes the CLI key material into a notification value.
func buildNotification(endpoint, p256dh, auth, payload string) (webpush.Notification, error) {
	n := webpush.Notification{Endpoint: endpoint}
	if payload != "" {
		n.Payload = []byte(payload)
	}
	if p256dh == "" && auth == "" {
		return n, nil
	}

	key, secret, err := service.DecodeKeys(p256dh, auth)
	if err != nil {
		return webpush.Notification{}, err
	}
	n.SubscriberKey = key
	n.AuthSecret = secret
	return n, nil
}
