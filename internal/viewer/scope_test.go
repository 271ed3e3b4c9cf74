package viewer

import (
	"errors"
	"testing"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestScopeClosesInReverseOrder(t *testing.T) {
	scope := NewScope()

	var order []int
	for i := 1; i <= 3; i++ {
		scope.Add(func() { order = append(order, i) })
	}
	scope.AddCloser(closerFunc(func() error {
		order = append(order, 4)
		return errors.New("ignored")
	}))
	scope.Add(nil)

	scope.Close()
	scope.Close()

	want := []int{4, 3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("Expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Position %d: expected %d, got %d", i, want[i], order[i])
		}
	}
}

func TestScopeAddAfterClose(t *testing.T) {
	scope := NewScope()
	scope.Close()

	ran := false
	scope.Add(func() { ran = true })
	if !ran {
		t.Error("Disposer added after Close should run immediately")
	}
}

func TestScopeReleasesSubscriptions(t *testing.T) {
	theme := NewThemeContext("")
	scope := NewScope()

	calls := 0
	scope.Add(theme.Subscribe(func(ThemeMode) { calls++ }))

	theme.Notify(ColorSchemeChange{ColorScheme: "light"})
	scope.Close()
	theme.Notify(ColorSchemeChange{ColorScheme: "dark"})

	if calls != 1 {
		t.Errorf("Expected 1 notification before teardown, got %d", calls)
	}
}
