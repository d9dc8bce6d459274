// Package arith is a small arithmetic expression language exercising
// the engine end to end: constants, commutative/associative Add and
// Mul, free variables, and a Lam binder demonstrating slot-based
// binder/scope handling (the teacher's own nominal.go repurposed to
// e-class binders — see DESIGN.md).
package arith

import (
	"strconv"

	"github.com/foresight-lang/foresight/pkg/egraph"
	"github.com/foresight-lang/foresight/pkg/slotted"
)

// Tag is the node kind discriminant.
type Tag uint8

const (
	TagConst Tag = iota
	TagVar
	TagAdd
	TagMul
	TagLam
)

func (t Tag) String() string {
	switch t {
	case TagConst:
		return "const"
	case TagVar:
		return "var"
	case TagAdd:
		return "add"
	case TagMul:
		return "mul"
	case TagLam:
		return "lam"
	default:
		return "unknown"
	}
}

// Op is arith's node-kind tag, satisfying egraph.Language. Value only
// carries meaning for TagConst; every other tag's nodes share the zero
// value so two Add nodes always compare Kind-equal regardless of where
// they were built, the way the spec's shape hashing requires.
type Op struct {
	Tag   Tag
	Value int64
}

func (o Op) String() string {
	if o.Tag == TagConst {
		return "const:" + strconv.FormatInt(o.Value, 10)
	}
	return o.Tag.String()
}

// Const builds a 0-ary constant leaf.
func Const(v int64) egraph.ENode[Op] { return egraph.Leaf(Op{Tag: TagConst, Value: v}) }

// Var builds a 0-ary node whose single free (use) slot names which
// binder it refers to.
func Var(slot slotted.Slot) egraph.ENode[Op] {
	return egraph.ENode[Op]{Kind: Op{Tag: TagVar}, Uses: []slotted.Slot{slot}}
}

// Add builds a commutative two-argument node.
func Add(a, b egraph.EClassCall) egraph.ENode[Op] {
	return egraph.NewENode(Op{Tag: TagAdd}, nil, nil, []egraph.EClassCall{a, b})
}

// Mul builds a commutative two-argument node.
func Mul(a, b egraph.EClassCall) egraph.ENode[Op] {
	return egraph.NewENode(Op{Tag: TagMul}, nil, nil, []egraph.EClassCall{a, b})
}

// Lam builds a one-argument node that binds slot within body: the
// binder/scope pair the spec's α-equivalence scenario exercises.
// Two Lam nodes whose bodies are shape-identical up to the bound
// slot's own renaming hash-cons to the same class, since shape
// computation canonically renumbers a node's definitions before
// the hash-cons lookup (spec §4.1).
func Lam(slot slotted.Slot, body egraph.EClassCall) egraph.ENode[Op] {
	return egraph.NewENode(Op{Tag: TagLam}, []slotted.Slot{slot}, nil, []egraph.EClassCall{body})
}
