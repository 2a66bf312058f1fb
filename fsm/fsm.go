// Package fsm 提供通用的有限状态机基础设施.
//
// Table 描述状态转移规则，构建完成后只读，可被任意多个 Machine 共享；
// Machine 只保存当前状态，适合为每条模拟路径各建一个实例.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrInvalidTransition 无效的状态转移.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrHandlerFailed 处理器执行失败.
	ErrHandlerFailed = errors.New("fsm handler failed")
)

// Handler 定义状态流转时执行的回调函数.
type Handler[S comparable] func(ctx context.Context, from, to S, args ...any) error

// Table 状态转移表.
type Table[S comparable, E comparable] struct {
	transitions map[S]map[E]S
	handlers    map[S]map[S]Handler[S]
}

// NewTable 创建空的转移表.
func NewTable[S comparable, E comparable]() *Table[S, E] {
	return &Table[S, E]{
		transitions: make(map[S]map[E]S),
		handlers:    make(map[S]map[S]Handler[S]),
	}
}

// AddTransition 添加一条状态转移规则，返回自身以便链式构建.
func (t *Table[S, E]) AddTransition(from S, event E, to S) *Table[S, E] {
	if _, ok := t.transitions[from]; !ok {
		t.transitions[from] = make(map[E]S)
	}
	t.transitions[from][event] = to
	return t
}

// AddHandler 为特定的状态转移注册回调动作.
func (t *Table[S, E]) AddHandler(from, to S, handler Handler[S]) *Table[S, E] {
	if _, ok := t.handlers[from]; !ok {
		t.handlers[from] = make(map[S]Handler[S])
	}
	t.handlers[from][to] = handler
	return t
}

// Terminal 判断状态是否没有任何出边.
func (t *Table[S, E]) Terminal(s S) bool {
	return len(t.transitions[s]) == 0
}

// New 以 initial 为初始状态创建一个状态机实例.
func (t *Table[S, E]) New(initial S) *Machine[S, E] {
	return &Machine[S, E]{table: t, current: initial}
}

// Machine 单个状态机实例，非并发安全.
type Machine[S comparable, E comparable] struct {
	table   *Table[S, E]
	current S
}

// Current 获取状态机当前所处的状态.
func (m *Machine[S, E]) Current() S {
	return m.current
}

// Can 判断当前状态下事件是否可触发.
func (m *Machine[S, E]) Can(event E) bool {
	_, ok := m.table.transitions[m.current][event]
	return ok
}

// Done 判断当前是否处于终止状态.
func (m *Machine[S, E]) Done() bool {
	return m.table.Terminal(m.current)
}

// Trigger 触发一个事件，处理器失败时状态保持不变.
func (m *Machine[S, E]) Trigger(ctx context.Context, event E, args ...any) error {
	from := m.current
	to, ok := m.table.transitions[from][event]
	if !ok {
		return fmt.Errorf("%w: event %v for state %v", ErrInvalidTransition, event, from)
	}

	if handler, okH := m.table.handlers[from][to]; okH {
		if err := handler(ctx, from, to, args...); err != nil {
			return fmt.Errorf("%w (%v -> %v): %w", ErrHandlerFailed, from, to, err)
		}
	}

	m.current = to

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		slog.DebugContext(ctx, "fsm state transitioned", "from", from, "to", to, "event", event)
	}

	return nil
}
