// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package expr defines the small predicate AST used by
// FilterByKeyRange pushdown and by projection pruning (§4.3).
// It is deliberately far smaller than a full query-language
// expression tree: it models only what a physical-plan scan
// needs to reason about column equality, ordering, and boolean
// combination.
package expr

import (
	"fmt"
	"strings"
)

// Node is any predicate or path expression.
type Node interface {
	text(dst *strings.Builder)
	walk(v Visitor)
}

// Visitor is called with every node of a tree by Walk.
type Visitor interface {
	Visit(n Node) Visitor
}

// Walk visits n and its children depth-first, in the style of
// the teacher's larger expr.Walk.
func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	if v = v.Visit(n); v == nil {
		return
	}
	n.walk(v)
}

// ToString renders n as a debug string; it is not a SQL dialect
// and is intended for logs and tests only.
func ToString(n Node) string {
	var sb strings.Builder
	n.text(&sb)
	return sb.String()
}

// Ident is a bare column reference, resolved by name against a
// schema before a plan is pushed to a scan.
type Ident string

func (i Ident) text(dst *strings.Builder) { dst.WriteString(string(i)) }
func (i Ident) walk(v Visitor)            {}

// CompareOp enumerates the comparison operators a FilterByKeyRange
// predicate may use against a sort-key column.
type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (op CompareOp) String() string {
	switch op {
	case Eq:
		return "="
	case Ne:
		return "<>"
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	default:
		return "?"
	}
}

// Compare is a binary comparison between two expressions, e.g.
// a column against a literal bound.
type Compare struct {
	Op          CompareOp
	Left, Right Node
}

func (c *Compare) text(dst *strings.Builder) {
	c.Left.text(dst)
	dst.WriteString(" ")
	dst.WriteString(c.Op.String())
	dst.WriteString(" ")
	c.Right.text(dst)
}

func (c *Compare) walk(v Visitor) {
	Walk(v, c.Left)
	Walk(v, c.Right)
}

// LogicalOp enumerates the boolean connectives of Logical.
type LogicalOp int

const (
	And LogicalOp = iota
	Or
)

func (op LogicalOp) String() string {
	if op == And {
		return "AND"
	}
	return "OR"
}

// Logical is an n-ary AND/OR combination of predicates.
type Logical struct {
	Op    LogicalOp
	Terms []Node
}

func (l *Logical) text(dst *strings.Builder) {
	dst.WriteString("(")
	for i, t := range l.Terms {
		if i > 0 {
			dst.WriteString(" ")
			dst.WriteString(l.Op.String())
			dst.WriteString(" ")
		}
		t.text(dst)
	}
	dst.WriteString(")")
}

func (l *Logical) walk(v Visitor) {
	for _, t := range l.Terms {
		Walk(v, t)
	}
}

// Not negates its single operand.
type Not struct {
	Inner Node
}

func (n *Not) text(dst *strings.Builder) {
	dst.WriteString("NOT ")
	n.Inner.text(dst)
}

func (n *Not) walk(v Visitor) { Walk(v, n.Inner) }

// Literal is a constant value used as the bound of a Compare.
type Literal struct {
	// exactly one of these is meaningful, selected by Kind
	Kind LiteralKind
	I    int64
	F    float64
	S    string
	B    bool
}

// LiteralKind distinguishes which field of a Literal is live.
type LiteralKind int8

const (
	KindNull LiteralKind = iota
	KindInt
	KindFloat
	KindString
	KindBool
)

func Int(i int64) *Literal    { return &Literal{Kind: KindInt, I: i} }
func Float(f float64) *Literal { return &Literal{Kind: KindFloat, F: f} }
func String(s string) *Literal { return &Literal{Kind: KindString, S: s} }
func Bool(b bool) *Literal     { return &Literal{Kind: KindBool, B: b} }

func (l *Literal) text(dst *strings.Builder) {
	switch l.Kind {
	case KindInt:
		fmt.Fprintf(dst, "%d", l.I)
	case KindFloat:
		fmt.Fprintf(dst, "%g", l.F)
	case KindString:
		fmt.Fprintf(dst, "%q", l.S)
	case KindBool:
		fmt.Fprintf(dst, "%t", l.B)
	default:
		dst.WriteString("NULL")
	}
}

func (l *Literal) walk(v Visitor) {}

// IsPath reports whether n is a bare column reference.
func IsPath(n Node) bool {
	_, ok := n.(Ident)
	return ok
}

// FlatPath returns the column name of a path expression.
func FlatPath(n Node) (string, bool) {
	id, ok := n.(Ident)
	return string(id), ok
}
