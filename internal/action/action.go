// Package action defines the closed vocabulary of state transitions. Every
// value is an immutable description of either an intent (verbs the caller
// dispatches) or an outcome (results middleware feeds back). Actions carry
// data only, never behavior.
package action

import "reflect"

// Action is the sealed marker implemented by every action in this package.
type Action interface {
	isAction()
}

// Name returns the bare type name of an action, for logs and error text.
func Name(a Action) string {
	t := reflect.TypeOf(a)
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
