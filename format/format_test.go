package format

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
)

type point struct {
	X, Y   int
	hidden string
}

type label string

type panicky struct{}

func (panicky) String() string { panic("no text") }

type named struct{ name string }

func (n *named) String() string { return "named:" + n.name }

type node struct {
	Name string
	Next *node
}

func greet() {}

func TestFormat_Scalars(t *testing.T) {
	is := is.New(t)

	is.Equal(Format(nil), "null")
	is.Equal(Format(Undefined), "undefined")
	is.Equal(Format("plain"), "plain")
	is.Equal(Format(label("typed")), "typed")
	is.Equal(Format(true), "true")
	is.Equal(Format(false), "false")
	is.Equal(Format(42), "42")
	is.Equal(Format(int8(-7)), "-7")
	is.Equal(Format(uint64(18446744073709551615)), "18446744073709551615")
}

func TestFormat_Numbers(t *testing.T) {
	is := is.New(t)

	is.Equal(Format(1.0), "1")
	is.Equal(Format(1.5), "1.5")
	is.Equal(Format(-0.25), "-0.25")
	is.Equal(Format(0.1+0.2), "0.30000000000000004")
	is.Equal(Format(math.Copysign(0, -1)), "0")
	is.Equal(Format(1e21), "1e+21")
	is.Equal(Format(1e20), "100000000000000000000")
	is.Equal(Format(1e-7), "1e-7")
	is.Equal(Format(float32(0.5)), "0.5")
	is.Equal(Format(math.NaN()), "NaN")
	is.Equal(Format(math.Inf(1)), "Infinity")
	is.Equal(Format(math.Inf(-1)), "-Infinity")
}

func TestFormat_Collections(t *testing.T) {
	is := is.New(t)

	is.Equal(Format([]any{1, "x"}), "[ 1, 'x' ]")
	is.Equal(Format([]int{}), "[  ]")
	is.Equal(Format([2]string{"a", "b"}), "[ 'a', 'b' ]")
	is.Equal(Format([]any{nil, Undefined, true}), "[ null, undefined, true ]")
	is.Equal(Format([]any{[]any{"in"}}), "[ [ 'in' ] ]")
	is.Equal(Format(map[string]any{"a": 1}), "{ a: 1 }")
	is.Equal(Format(map[string]any{"b": "two", "a": 1}), "{ a: 1, b: 'two' }")
	is.Equal(Format(map[string]int{}), "{  }")
	is.Equal(Format(map[string]any{"list": []any{"x"}}), "{ list: [ 'x' ] }")
}

func TestFormat_Structs(t *testing.T) {
	is := is.New(t)

	is.Equal(Format(point{X: 1, Y: 2, hidden: "h"}), "{ X: 1, Y: 2 }")
	is.Equal(Format(&point{X: 3}), "{ X: 3, Y: 0 }")
	is.Equal(Format(struct{ Msg string }{"hi"}), "{ Msg: 'hi' }")

	var nilPoint *point
	is.Equal(Format(nilPoint), "null")
}

func TestFormat_Functions(t *testing.T) {
	is := is.New(t)

	is.Equal(Format(greet), "[Function format.greet]")
	is.True(strings.HasPrefix(Format(func() {}), "[Function format."))

	var nilFn func()
	is.Equal(Format(nilFn), "null")
}

func TestFormat_TextMethods(t *testing.T) {
	is := is.New(t)

	is.Equal(Format(errors.New("boom")), "boom")
	is.Equal(Format(2*time.Second), "2s")
	is.Equal(Format(&named{name: "n"}), "named:n")
	is.Equal(Format([]any{&named{name: "n"}}), "[ named:n ]")

	var nilNamed *named
	is.Equal(Format(nilNamed), "null")
}

func TestFormat_NeverPanics(t *testing.T) {
	is := is.New(t)

	is.Equal(Format(panicky{}), "object")
	is.Equal(Format(make(chan int)), "object")

	loop := &node{Name: "a"}
	loop.Next = loop
	out := Format(loop)
	is.True(strings.HasPrefix(out, "{ Name: 'a', Next: { Name: 'a'"))
	is.True(strings.Contains(out, "object"))
}

func TestJoin(t *testing.T) {
	is := is.New(t)

	is.Equal(Join(), "")
	is.Equal(Join("Started", 1, []any{"x"}), "Started 1 [ 'x' ]")
	is.Equal(Join(map[string]any{"hello": "world"}), "{ hello: 'world' }")
}
