// Command setup-device points the terminal's HTTP notification host at the bridge webhook
// and forces the card-or-face authentication mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"hik-access-bridge/common/logger"
	"hik-access-bridge/internal/config"
	"hik-access-bridge/internal/device"
	"hik-access-bridge/internal/models"
	"hik-access-bridge/internal/service"

	"go.uber.org/zap"
)

const webhookPath = "/api/hikvision/event"

func main() {
	hostID := flag.Int("host-id", 1, "notification host slot on the terminal")
	format := flag.String("format", "JSON", "notification payload format (JSON or XML)")
	uploadImages := flag.Bool("upload-images", true, "ask the terminal to attach captures")
	authMode := flag.String("auth-mode", models.VerifyModeCardOrFace, "terminal-wide authentication mode; empty skips it")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	lg, err := logger.NewLogger(cfg.Log.Level, "console", "setup-device")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	host, err := notificationHost(cfg.HTTP.PublicBaseURL)
	if err != nil {
		lg.Fatal("Invalid PUBLIC_BASE_URL", zap.String("public_base_url", cfg.HTTP.PublicBaseURL), zap.Error(err))
	}
	host.ID = *hostID
	host.Format = *format
	host.UploadImages = *uploadImages

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := service.NewDeviceClient(cfg, lg)

	if err := client.ConfigureNotificationHost(ctx, host); err != nil {
		lg.Error("Failed to configure notification host", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("Notification host configured",
		zap.Int("id", host.ID),
		zap.String("target", fmt.Sprintf("http://%s:%d%s", host.IPAddress, host.Port, host.Path)),
		zap.String("format", host.Format),
	)

	if *authMode == "" {
		return
	}
	if err := client.SetAuthMode(ctx, *authMode); err != nil {
		if de, ok := device.AsError(err); ok {
			lg.Warn("Terminal refused the authentication mode", zap.String("mode", *authMode), zap.String("device", de.Diagnostic()))
		} else {
			lg.Error("Failed to set authentication mode", zap.Error(err))
		}
		os.Exit(1)
	}
	lg.Info("Authentication mode set", zap.String("mode", *authMode))
}

// notificationHost derives the webhook target from the public base URL.
func notificationHost(publicBaseURL string) (device.NotificationHost, error) {
	u, err := url.Parse(publicBaseURL)
	if err != nil {
		return device.NotificationHost{}, err
	}
	if u.Hostname() == "" {
		return device.NotificationHost{}, fmt.Errorf("no host in %q", publicBaseURL)
	}
	port := 80
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return device.NotificationHost{}, fmt.Errorf("bad port in %q: %w", publicBaseURL, err)
		}
	} else if u.Scheme == "https" {
		port = 443
	}
	if net.ParseIP(u.Hostname()) == nil {
		return device.NotificationHost{}, fmt.Errorf("terminal needs an IP address, got %q", u.Hostname())
	}
	return device.NotificationHost{
		IPAddress: u.Hostname(),
		Port:      port,
		Path:      webhookPath,
	}, nil
}
