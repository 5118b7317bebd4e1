package mocks

import (
	"novel-runtime/shared/interfaces"
	"novel-runtime/shared/models"

	"github.com/stretchr/testify/mock"
)

// MockAttemptRecorder is a mock type for the AttemptRecorder type
type MockAttemptRecorder struct {
	mock.Mock
}

// Record provides a mock function with given fields: rec
func (_m *MockAttemptRecorder) Record(rec models.AttemptRecord) {
	_m.Called(rec)
}

// NewMockAttemptRecorder creates a new instance of MockAttemptRecorder. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockAttemptRecorder(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAttemptRecorder {
	m := &MockAttemptRecorder{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ interfaces.AttemptRecorder = (*MockAttemptRecorder)(nil)
