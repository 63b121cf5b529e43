package storage

import (
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoavatar/internal/utils"
)

// Uploader copies one object to a remote location and returns the URL it is
// reachable at.
type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (publicURL string, err error)
}

// Publisher delivers rendered files. Every failure comes back as a
// DeliveryError so callers can recover with a local URL.
type Publisher struct {
	up   Uploader
	mode string
	log  *logrus.Logger
}

// NewPublisher accepts a nil uploader: delivery is then always refused.
func NewPublisher(up Uploader, mode string, l *logrus.Logger) *Publisher {
	if l == nil {
		l = logrus.New()
	}
	return &Publisher{up: up, mode: mode, log: l}
}

func (p *Publisher) Mode() string {
	if p.up == nil {
		return "none"
	}
	return p.mode
}

func (p *Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	const op = "Publisher.Publish"

	if p.up == nil {
		return "", utils.K(utils.KindDelivery, op, "remote delivery not configured", nil)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", utils.K(utils.KindDelivery, op, "open rendered file", err)
	}
	defer f.Close()

	name := filepath.Base(localPath)
	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}

	url, err := p.up.Upload(ctx, name, ct, f)
	if err != nil {
		return "", utils.K(utils.KindDelivery, op, p.mode+" upload failed", err)
	}
	p.log.WithFields(logrus.Fields{"file": name, "url": url, "mode": p.mode}).Info("delivered")
	return url, nil
}
