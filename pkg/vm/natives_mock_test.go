package vm

import (
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"

	"github.com/kristofer/luna/pkg/value"
)

// MockNativeFunction is a hand-authored stand-in for a mockgen-generated
// mock of value.NativeFunction, shaped the way Fantom-foundation-Tosca's
// generated mocks are (ctrl/recorder/EXPECT), since this interface is small
// enough not to warrant running mockgen over it.
type MockNativeFunction struct {
	ctrl     *gomock.Controller
	recorder *MockNativeFunctionMockRecorder
}

// MockNativeFunctionMockRecorder is the mock recorder for MockNativeFunction.
type MockNativeFunctionMockRecorder struct {
	mock *MockNativeFunction
}

// NewMockNativeFunction creates a new mock instance.
func NewMockNativeFunction(ctrl *gomock.Controller) *MockNativeFunction {
	mock := &MockNativeFunction{ctrl: ctrl}
	mock.recorder = &MockNativeFunctionMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockNativeFunction) EXPECT() *MockNativeFunctionMockRecorder {
	return m.recorder
}

// Call mocks base method.
func (m *MockNativeFunction) Call(stack value.NativeStack) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Call", stack)
	ret0, _ := ret[0].(error)
	return ret0
}

// Call indicates an expected call of Call.
func (mr *MockNativeFunctionMockRecorder) Call(stack any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Call", reflect.TypeOf((*MockNativeFunction)(nil).Call), stack)
}

// Name mocks base method.
func (m *MockNativeFunction) Name() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Name")
	ret0, _ := ret[0].(string)
	return ret0
}

// Name indicates an expected call of Name.
func (mr *MockNativeFunctionMockRecorder) Name() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Name", reflect.TypeOf((*MockNativeFunction)(nil).Name))
}
