package auth

import "github.com/MrCodeEU/eigenauth/pkg/eigenface"

// MockProjector implements Projector interface for testing
type MockProjector struct {
	ProjectOneFunc func(img eigenface.Image) ([]float64, error)
	Calls          int
}

func (m *MockProjector) ProjectOne(img eigenface.Image) ([]float64, error) {
	m.Calls++
	if m.ProjectOneFunc != nil {
		return m.ProjectOneFunc(img)
	}
	return nil, nil
}
