// Package face manages the face library entries of the terminal.
//
// Per identity the lifecycle is NoFace -> (upload ok) -> HasFace -> (delete confirmed
// absent) -> NoFace. A failed upload leaves the state unchanged; a delete the terminal
// acknowledges but does not carry out is reported as ErrDeleteUnconfirmed.
package face

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"hik-access-bridge/internal/device"
	"hik-access-bridge/internal/models"
	"hik-access-bridge/internal/timeutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmptyImage        = errors.New("face image is empty")
	ErrEmptyIdentity     = errors.New("employee number is empty")
	ErrDeleteUnconfirmed = errors.New("face still present after delete")
)

// Library face library operations of the terminal.
type Library interface {
	UploadFace(ctx context.Context, employeeNo, faceURL string) (device.UpsertResult, error)
	SearchFace(ctx context.Context, employeeNo string) (models.FaceEnrollment, error)
	DeleteFace(ctx context.Context, employeeNo string) error
}

// ImageStore where images wait for the terminal to fetch them.
type ImageStore interface {
	Save(name string, r io.Reader) error
	Remove(name string) error
	PublicURL(name string) string
}

// Options retry and cleanup policy.
type Options struct {
	Attempts     int
	Backoff      time.Duration
	CleanupDelay time.Duration
}

// Manager upload, verify and confirmed delete of faces.
type Manager struct {
	library   Library
	images    ImageStore
	opts      Options
	logger    *zap.Logger
	afterFunc func(time.Duration, func())
	sleep     func(context.Context, time.Duration) error
}

func NewManager(library Library, images ImageStore, opts Options, logger *zap.Logger) *Manager {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	return &Manager{
		library: library,
		images:  images,
		opts:    opts,
		logger:  logger.Named("face"),
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		sleep: timeutil.SleepContext,
	}
}

// Upload stores the image, asks the terminal to fetch it and returns the enrollment.
// The stored image is removed after CleanupDelay on success (the terminal fetches it
// asynchronously) and immediately on failure.
func (m *Manager) Upload(ctx context.Context, employeeNo string, image []byte, ext string) (models.FaceEnrollment, error) {
	employeeNo = strings.TrimSpace(employeeNo)
	if employeeNo == "" {
		return models.FaceEnrollment{}, ErrEmptyIdentity
	}
	if len(image) == 0 {
		return models.FaceEnrollment{}, ErrEmptyImage
	}
	if ext == "" {
		ext = ".jpg"
	}

	name := fmt.Sprintf("face-%s-%s%s", employeeNo, uuid.NewString(), ext)
	if err := m.images.Save(name, bytes.NewReader(image)); err != nil {
		return models.FaceEnrollment{}, fmt.Errorf("failed to store face image: %w", err)
	}
	faceURL := m.images.PublicURL(name)

	var lastErr error
	for attempt := 1; attempt <= m.opts.Attempts; attempt++ {
		if attempt > 1 {
			if err := m.sleep(ctx, time.Duration(attempt-1)*m.opts.Backoff); err != nil {
				lastErr = err
				break
			}
		}
		res, err := m.library.UploadFace(ctx, employeeNo, faceURL)
		if err == nil {
			m.logger.Info("Face enrolled",
				zap.String("employee_no", employeeNo),
				zap.String("result", res.String()),
				zap.Int("attempt", attempt),
			)
			m.afterFunc(m.opts.CleanupDelay, func() { _ = m.images.Remove(name) })
			return models.FaceEnrollment{EmployeeNo: employeeNo, FaceURL: faceURL, Present: true}, nil
		}
		lastErr = err
		m.logger.Warn("Face upload attempt failed",
			zap.String("employee_no", employeeNo),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}

	_ = m.images.Remove(name)
	return models.FaceEnrollment{}, fmt.Errorf("face upload for %s failed: %w", employeeNo, lastErr)
}

// Verify reports whether a face is enrolled; absence is a normal result.
func (m *Manager) Verify(ctx context.Context, employeeNo string) (models.FaceEnrollment, error) {
	employeeNo = strings.TrimSpace(employeeNo)
	if employeeNo == "" {
		return models.FaceEnrollment{}, ErrEmptyIdentity
	}
	return m.library.SearchFace(ctx, employeeNo)
}

// Delete removes the face and succeeds only when a follow-up search confirms absence.
func (m *Manager) Delete(ctx context.Context, employeeNo string) error {
	employeeNo = strings.TrimSpace(employeeNo)
	if employeeNo == "" {
		return ErrEmptyIdentity
	}
	if err := m.library.DeleteFace(ctx, employeeNo); err != nil {
		return fmt.Errorf("face delete for %s failed: %w", employeeNo, err)
	}

	enrollment, err := m.library.SearchFace(ctx, employeeNo)
	if err != nil {
		return fmt.Errorf("%w: verify for %s failed: %w", ErrDeleteUnconfirmed, employeeNo, err)
	}
	if enrollment.Present {
		m.logger.Warn("Terminal acknowledged face delete but kept the face", zap.String("employee_no", employeeNo))
		return fmt.Errorf("%w (employee %s)", ErrDeleteUnconfirmed, employeeNo)
	}
	m.logger.Info("Face deleted", zap.String("employee_no", employeeNo))
	return nil
}
