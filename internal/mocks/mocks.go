// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/browser"
)

// -- Element Mock --

// MockElement mocks browser.Element for tests that assert exact call sequences.
type MockElement struct {
	mock.Mock
}

func (m *MockElement) Describe() string { return "mock-element" }

func (m *MockElement) Text() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockElement) Visible(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) Enabled(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) ScrollIntoView(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockElement) Click(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockElement) DispatchClick(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockElement) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockElement) TypeRune(ctx context.Context, r rune) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockElement) SetValue(ctx context.Context, value string) error {
	return m.Called(ctx, value).Error(0)
}

func (m *MockElement) Press(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// -- Workflow Collaborator Mocks --

// MockReporter mocks the run report sink.
type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Write(ctx context.Context, report *schemas.RunReport) (string, error) {
	args := m.Called(ctx, report)
	return args.String(0), args.Error(1)
}

// MockArtifactSink mocks the final diagnostic capture.
type MockArtifactSink struct {
	mock.Mock
}

func (m *MockArtifactSink) Capture(ctx context.Context, page browser.Page, runID string) ([]string, error) {
	args := m.Called(ctx, page, runID)
	if paths, ok := args.Get(0).([]string); ok {
		return paths, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockHistory mocks the run history store.
type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) SaveRun(ctx context.Context, report *schemas.RunReport) error {
	return m.Called(ctx, report).Error(0)
}

var _ browser.Element = (*MockElement)(nil)
