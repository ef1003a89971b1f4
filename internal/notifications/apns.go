// Package notifications delivers push notifications to learners' devices.
package notifications

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// APNsConfig holds configuration for Apple Push Notification service
type APNsConfig struct {
	KeyPath    string // Path to .p8 key file
	KeyID      string // Key ID from Apple Developer Portal
	TeamID     string // Team ID from Apple Developer Portal
	BundleID   string // App bundle ID (e.g., com.signconnect.app)
	Production bool   // Use production environment
}

// APNsClient sends push notifications via Apple Push Notification service.
// A nil client is valid and drops every send, so keyless deployments need
// no guards at the call sites.
type APNsClient struct {
	client   *apns2.Client
	bundleID string
	logger   zerolog.Logger
	mu       sync.Mutex
}

// NewAPNsClient creates a new APNs client. Returns nil without error when
// the configuration is incomplete.
func NewAPNsClient(cfg APNsConfig, logger zerolog.Logger) (*APNsClient, error) {
	if cfg.KeyPath == "" || cfg.KeyID == "" || cfg.TeamID == "" || cfg.BundleID == "" {
		logger.Info().Msg("apns: missing configuration, push notifications disabled")
		return nil, nil
	}

	keyBytes, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read APNs key file: %w", err)
	}

	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode APNs key PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs key: %w", err)
	}

	ecdsaKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("APNs key is not an ECDSA private key")
	}

	authToken := &token.Token{
		AuthKey: ecdsaKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	var client *apns2.Client
	if cfg.Production {
		client = apns2.NewTokenClient(authToken).Production()
	} else {
		client = apns2.NewTokenClient(authToken).Development()
	}

	logger.Info().
		Bool("production", cfg.Production).
		Str("bundle", cfg.BundleID).
		Msg("apns: client initialized")

	return &APNsClient{
		client:   client,
		bundleID: cfg.BundleID,
		logger:   logger,
	}, nil
}

// PracticeSummary represents data for an end-of-session notification.
type PracticeSummary struct {
	SessionID     string
	SignsMastered []string
	QuizCount     int
	BestScore     int
	Minutes       int
}

// SendPracticeSummary tells the learner how their session went.
func (c *APNsClient) SendPracticeSummary(deviceToken string, summary PracticeSummary) error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := payload.NewPayload().
		AlertTitle("Nice signing!").
		AlertBody(summaryBody(summary)).
		Sound("default").
		Custom("session_id", summary.SessionID).
		Custom("signs_mastered", strings.Join(summary.SignsMastered, ","))

	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       c.bundleID,
		Payload:     p,
		Expiration:  time.Now().Add(24 * time.Hour),
	}

	res, err := c.client.Push(notification)
	if err != nil {
		c.logger.Warn().Err(err).Msg("apns: failed to send practice summary")
		return err
	}

	if res.StatusCode != 200 {
		c.logger.Warn().
			Int("status", res.StatusCode).
			Str("reason", res.Reason).
			Msg("apns: practice summary rejected")
		return fmt.Errorf("APNs rejected notification: %s", res.Reason)
	}

	c.logger.Info().Str("token", deviceToken[:16]+"...").Msg("apns: practice summary sent")
	return nil
}

// SendTestNotification sends a test notification.
func (c *APNsClient) SendTestNotification(deviceToken, message string) error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := payload.NewPayload().
		AlertTitle("SignConnect Test").
		AlertBody(message).
		Sound("default")

	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       c.bundleID,
		Payload:     p,
		Expiration:  time.Now().Add(1 * time.Hour),
	}

	res, err := c.client.Push(notification)
	if err != nil {
		return err
	}

	if res.StatusCode != 200 {
		return fmt.Errorf("APNs rejected notification: %s", res.Reason)
	}

	return nil
}

// summaryBody picks the most interesting thing that happened.
func summaryBody(s PracticeSummary) string {
	var parts []string
	if len(s.SignsMastered) > 0 {
		parts = append(parts, fmt.Sprintf("You mastered %s.", joinSigns(s.SignsMastered)))
	}
	if s.QuizCount > 0 {
		parts = append(parts, fmt.Sprintf("Best quiz score: %d%%.", s.BestScore))
	}
	if len(parts) == 0 {
		if s.Minutes > 0 {
			return fmt.Sprintf("You practiced for %d minutes. Keep it up!", s.Minutes)
		}
		return "Thanks for practicing today!"
	}
	return strings.Join(parts, " ")
}

func joinSigns(signs []string) string {
	switch len(signs) {
	case 1:
		return signs[0]
	case 2:
		return signs[0] + " and " + signs[1]
	default:
		return strings.Join(signs[:len(signs)-1], ", ") + ", and " + signs[len(signs)-1]
	}
}
