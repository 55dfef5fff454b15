// Package dataset loads labelled face images and splits them into a gallery,
// known probes and unknown probes for authorization experiments.
package dataset

import (
	"fmt"
	"strings"

	"github.com/MrCodeEU/eigenauth/pkg/eigenface"
)

// Label identifies an image as "<subject>.<instance>".
type Label string

// ParseLabel validates that s has a non-empty subject and instance.
func ParseLabel(s string) (Label, error) {
	subject, instance, ok := strings.Cut(s, ".")
	if !ok || subject == "" || instance == "" {
		return "", fmt.Errorf("invalid label %q: want <subject>.<instance>", s)
	}
	return Label(s), nil
}

// Subject returns the part before the first dot. A label without a dot is its own subject.
func (l Label) Subject() string {
	subject, _, _ := strings.Cut(string(l), ".")
	return subject
}

// Instance returns the part after the first dot.
func (l Label) Instance() string {
	_, instance, _ := strings.Cut(string(l), ".")
	return instance
}

// SameSubject reports whether both labels belong to the same person.
func (l Label) SameSubject(other Label) bool {
	return l.Subject() == other.Subject()
}

// Sample is one labelled image.
type Sample struct {
	Image eigenface.Image
	Label Label
}

// Images returns the images of samples in order.
func Images(samples []Sample) []eigenface.Image {
	images := make([]eigenface.Image, len(samples))
	for i, s := range samples {
		images[i] = s.Image
	}
	return images
}

// Labels returns the labels of samples in order.
func Labels(samples []Sample) []Label {
	labels := make([]Label, len(samples))
	for i, s := range samples {
		labels[i] = s.Label
	}
	return labels
}
