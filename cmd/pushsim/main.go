package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pawtrail/pushgate/internal/bus"
)

type payload struct {
	EntityID  string  `json:"entity_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude,omitempty"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Nonce     string  `json:"nonce,omitempty"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file loaded:", err)
	}
	v := viper.New()
	v.AutomaticEnv()

	mode := flag.String("mode", "webhook", "Delivery transport: webhook or bus")
	endpoint := flag.String("endpoint", strings.TrimSpace(v.GetString("PUSHSIM_ENDPOINT")), "Target base URL (or PUSHSIM_ENDPOINT)")
	token := flag.String("token", strings.TrimSpace(v.GetString("PUSHSIM_AUTH_TOKEN")), "Tenant auth token (or PUSHSIM_AUTH_TOKEN)")
	secret := flag.String("secret", strings.TrimSpace(v.GetString("PUSHSIM_WEBHOOK_SECRET")), "Tenant webhook secret (or PUSHSIM_WEBHOOK_SECRET)")
	tenant := flag.String("tenant", strings.TrimSpace(v.GetString("PUSHSIM_TENANT")), "Tenant slug, bus mode only (or PUSHSIM_TENANT)")
	entityID := flag.String("entity", "", "Entity id")
	latitude := flag.Float64("lat", 0, "Latitude")
	longitude := flag.Float64("lon", 0, "Longitude")
	altitude := flag.Float64("alt", 0, "Altitude (optional)")
	accuracy := flag.Float64("accuracy", 0, "Accuracy in meters (optional)")
	nonce := flag.String("nonce", "", "Replay nonce (defaults to a fresh uuid)")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Parse()

	if strings.TrimSpace(*entityID) == "" {
		exitErr("entity is required")
	}
	if strings.TrimSpace(*endpoint) == "" {
		exitErr("endpoint is required (or set PUSHSIM_ENDPOINT)")
	}
	if strings.TrimSpace(*nonce) == "" {
		*nonce = uuid.NewString()
	}

	body := payload{
		EntityID:  strings.TrimSpace(*entityID),
		Latitude:  *latitude,
		Longitude: *longitude,
		Altitude:  *altitude,
		Accuracy:  *accuracy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Nonce:     strings.TrimSpace(*nonce),
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(*mode)) {
	case "webhook":
		if strings.TrimSpace(*token) == "" {
			exitErr("token is required in webhook mode (or set PUSHSIM_AUTH_TOKEN)")
		}
		sendWebhook(ctx, strings.TrimSpace(*endpoint), strings.TrimSpace(*token), strings.TrimSpace(*secret), body)
	case "bus":
		if strings.TrimSpace(*tenant) == "" {
			exitErr("tenant is required in bus mode (or set PUSHSIM_TENANT)")
		}
		sendBusEvent(ctx, strings.TrimSpace(*endpoint), strings.TrimSpace(*tenant), body)
	default:
		exitErr("mode must be webhook or bus")
	}
}

func sendWebhook(ctx context.Context, endpoint, token, secret string, body payload) {
	raw, err := json.Marshal(body)
	if err != nil {
		exitErr(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(endpoint, "/")+"/push/webhook", bytes.NewReader(raw))
	if err != nil {
		exitErr(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(raw)
		req.Header.Set("X-Push-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		exitErr(err.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	fmt.Printf("Pushed %s over webhook: %d %s\n", body.EntityID, resp.StatusCode, strings.TrimSpace(string(reply)))
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

func sendBusEvent(ctx context.Context, endpoint, tenant string, body payload) {
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		exitErr(err.Error())
	}

	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetType(bus.PushEventType)
	event.SetSource("pushsim")
	event.SetSubject(body.EntityID)
	event.SetExtension(bus.TenantExtension, tenant)
	if err := event.SetData(cloudevents.ApplicationJSON, body); err != nil {
		exitErr(err.Error())
	}

	result := client.Send(cloudevents.ContextWithTarget(ctx, endpoint), event)
	if cloudevents.IsUndelivered(result) {
		exitErr(fmt.Sprintf("bus delivery failed: %v", result))
	}
	fmt.Printf("Pushed %s over bus as %s\n", body.EntityID, event.ID())
}

func exitErr(message string) {
	fmt.Fprintln(os.Stderr, message)
	os.Exit(1)
}
