// Package auth authorizes single face images against an enrolled gallery in
// eigenface space. It is the interactive counterpart of the batch evaluation.
package auth

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/MrCodeEU/eigenauth/pkg/dataset"
	"github.com/MrCodeEU/eigenauth/pkg/eigenface"
	"github.com/MrCodeEU/eigenauth/pkg/logging"
	"github.com/MrCodeEU/eigenauth/pkg/search"
)

// AuthResult represents the result of an authentication attempt.
type AuthResult struct {
	Success bool
	Error   error
	// Duration covers projection and search.
	Duration time.Duration
	Reason   string
	// Subject and Label identify the nearest gallery image, also on failure.
	Subject string
	Label   dataset.Label
	// Distance is the squared distance to the nearest gallery image.
	Distance  float64
	Neighbors int
}

// ErrorCode represents a specific authentication error type.
type ErrorCode string

const (
	ErrCodeNotRecognized ErrorCode = "NOT_RECOGNIZED"
	ErrCodeShapeMismatch ErrorCode = "SHAPE_MISMATCH"
	ErrCodeEmptyGallery  ErrorCode = "EMPTY_GALLERY"
	ErrCodeNotEnrolled   ErrorCode = "NOT_ENROLLED"
)

// AuthError is a structured authentication error.
type AuthError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
}

func (e *AuthError) Error() string {
	return e.Message
}

// User-friendly error messages
var errorMessages = map[ErrorCode]string{
	ErrCodeNotRecognized: "Face not recognized",
	ErrCodeShapeMismatch: "Image does not match the enrolled image size",
	ErrCodeEmptyGallery:  "No faces are enrolled",
	ErrCodeNotEnrolled:   "No face data enrolled for this subject",
}

// GetErrorMessage returns a user-friendly message for an error code.
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Authentication failed"
}

// NewAuthError creates a new authentication error.
func NewAuthError(code ErrorCode) *AuthError {
	return &AuthError{
		Code:    code,
		Message: GetErrorMessage(code),
		Details: make(map[string]interface{}),
	}
}

// ErrNilModel is returned when an authenticator is built without a projector.
var ErrNilModel = errors.New("no eigenface model")

// Authenticator defines the interface for face authorization.
type Authenticator interface {
	// Authenticate accepts img if any enrolled face lies within the radius.
	Authenticate(img eigenface.Image) AuthResult

	// AuthenticateAs accepts img only if a face of subject lies within the radius.
	AuthenticateAs(subject string, img eigenface.Image) AuthResult

	// SetRadius sets the squared-distance acceptance radius.
	SetRadius(radius float64)
}

// Projector maps an image into the reduced space.
type Projector interface {
	ProjectOne(img eigenface.Image) ([]float64, error)
}

// EigenAuthenticator implements Authenticator by radius search over a reduced gallery.
type EigenAuthenticator struct {
	projector Projector
	gallery   *mat.Dense
	labels    []dataset.Label
	radius    float64
}

// NewEigenAuthenticator projects the gallery samples through model and enrolls them.
func NewEigenAuthenticator(model *eigenface.Model, gallery []dataset.Sample, radius float64) (*EigenAuthenticator, error) {
	if model == nil {
		return nil, ErrNilModel
	}
	a := &EigenAuthenticator{projector: model, radius: radius}
	if len(gallery) == 0 {
		return a, nil
	}

	reduced, err := model.Project(dataset.Images(gallery))
	if err != nil {
		return nil, fmt.Errorf("failed to project gallery: %w", err)
	}
	a.gallery = reduced
	a.labels = dataset.Labels(gallery)

	logging.Component("auth").WithFields(logging.Fields{
		"enrolled":   len(gallery),
		"components": model.Components(),
		"radius":     radius,
	}).Debug("authenticator ready")

	return a, nil
}

// SetRadius sets the squared-distance acceptance radius.
func (a *EigenAuthenticator) SetRadius(radius float64) {
	a.radius = radius
}

// Authenticate performs a 1:N authorization of img.
func (a *EigenAuthenticator) Authenticate(img eigenface.Image) AuthResult {
	return a.authenticate(img, "")
}

// AuthenticateAs performs a 1:1 authorization of img against subject's images.
func (a *EigenAuthenticator) AuthenticateAs(subject string, img eigenface.Image) AuthResult {
	return a.authenticate(img, subject)
}

func (a *EigenAuthenticator) authenticate(img eigenface.Image, subject string) AuthResult {
	startTime := time.Now()
	result := AuthResult{Distance: math.Inf(1)}

	if a.gallery == nil {
		result.Error = NewAuthError(ErrCodeEmptyGallery)
		result.Reason = "gallery is empty"
		return result
	}

	rows := a.candidates(subject)
	if len(rows) == 0 {
		result.Error = NewAuthError(ErrCodeNotEnrolled)
		result.Reason = fmt.Sprintf("subject %s has no gallery images", subject)
		logging.Warnf("Subject not enrolled: %s", subject)
		return result
	}

	query, err := a.projector.ProjectOne(img)
	if err != nil {
		authErr := NewAuthError(ErrCodeShapeMismatch)
		authErr.Details["cause"] = err.Error()
		result.Error = authErr
		result.Reason = err.Error()
		result.Duration = time.Since(startTime)
		return result
	}
	if _, k := a.gallery.Dims(); len(query) != k {
		authErr := NewAuthError(ErrCodeShapeMismatch)
		authErr.Details["expected"] = k
		authErr.Details["actual"] = len(query)
		result.Error = authErr
		result.Reason = "projection dimension differs from gallery"
		result.Duration = time.Since(startTime)
		return result
	}

	for _, i := range search.RadiusNeighbors(a.gallery, query, a.radius) {
		if a.claims(i, subject) {
			result.Neighbors++
		}
	}

	distances := search.SquaredDistances(a.gallery, query)
	nearest := rows[0]
	for _, i := range rows[1:] {
		if distances[i] < distances[nearest] {
			nearest = i
		}
	}
	result.Distance = distances[nearest]
	result.Label = a.labels[nearest]
	result.Subject = result.Label.Subject()
	result.Duration = time.Since(startTime)

	if result.Neighbors > 0 {
		result.Success = true
		logging.Infof("Authorized as %s (nearest: %s, distance: %.4g, neighbors: %d)",
			result.Subject, result.Label, result.Distance, result.Neighbors)
		return result
	}

	result.Error = NewAuthError(ErrCodeNotRecognized)
	result.Reason = fmt.Sprintf("nearest face at %.4g exceeds radius %.4g", result.Distance, a.radius)
	logging.Debugf("Face not matched (distance: %.4g, radius: %.4g)", result.Distance, a.radius)
	return result
}

// candidates lists the gallery rows eligible for a claim. An empty subject allows all.
func (a *EigenAuthenticator) candidates(subject string) []int {
	rows := make([]int, 0, len(a.labels))
	for i := range a.labels {
		if a.claims(i, subject) {
			rows = append(rows, i)
		}
	}
	return rows
}

func (a *EigenAuthenticator) claims(row int, subject string) bool {
	return subject == "" || a.labels[row].Subject() == subject
}
