package lang

import "fmt"

// Compiler lowers an AST into a single linear code vector appended to
// a VM's code buffer, along with a parallel location-mapping table.
type Compiler struct {
	vm       *VM
	sourceID int
	patch    []int // open jump-patch stack for break jumps out of foreach
	loopEnds []int // break targets, one per enclosing foreach
	loopTops []int // continue targets, one per enclosing foreach
	err      error
}

// NewCompiler creates a compiler appending to vm's existing code.
func NewCompiler(vm *VM, sourceID int) *Compiler {
	return &Compiler{vm: vm, sourceID: sourceID}
}

func (c *Compiler) emit(b byte, loc Location) int {
	ip := len(c.vm.code)
	c.vm.code = append(c.vm.code, b)
	c.vm.locs = append(c.vm.locs, locEntry{ip: ip, offset: loc.Offset, length: loc.Length})
	return ip
}

func (c *Compiler) emit24(v uint32) {
	var buf [3]byte
	put24(buf[:], v)
	c.vm.code = append(c.vm.code, buf[:]...)
}

func (c *Compiler) emitOp(op Op, loc Location) int { return c.emit(byte(op), loc) }

func (c *Compiler) patch24(ip int, v uint32) {
	var buf [3]byte
	put24(buf[:], v)
	copy(c.vm.code[ip:ip+3], buf[:])
}

func (c *Compiler) here() uint32 { return uint32(len(c.vm.code)) }

// Compile lowers a top-level block into bytecode ending in return_end.
func (c *Compiler) Compile(block *Node) error {
	c.compileBlock(block)
	if c.err != nil {
		return c.err
	}
	c.emitOp(OpReturnEnd, block.Loc)
	return nil
}

func (c *Compiler) fail(loc Location, format string, args ...interface{}) {
	if c.err == nil {
		c.err = fmt.Errorf("%s: %s", fmt.Sprintf("offset %d", loc.Offset), fmt.Sprintf(format, args...))
	}
}

func (c *Compiler) compileBlock(n *Node) {
	for _, stmt := range n.List {
		c.compileStmt(stmt)
	}
}

func (c *Compiler) compileStmt(n *Node) {
	switch n.Kind {
	case NodeIf:
		c.compileIf(n)
	case NodeForeach:
		c.compileForeach(n)
	case NodeAssignment:
		c.compileExpr(n.R)
		c.compileStoreTarget(n.L)
	case NodePlusAssign:
		c.compileExpr(n.L)
		c.compileExpr(n.R)
		c.emitOp(OpAdd, n.Loc)
		c.compileStoreTarget(n.L)
	case NodeFuncDef:
		c.compileFuncDef(n)
	case NodeReturn:
		if n.L != nil {
			c.compileExpr(n.L)
		} else {
			c.emitConstant(HandleNull, n.Loc)
		}
		c.emitOp(OpReturn, n.Loc)
	case NodeContinue:
		if len(c.loopTops) == 0 {
			c.fail(n.Loc, "continue outside of foreach")
			return
		}
		c.emitOp(OpJmp, n.Loc)
		c.emit24(uint32(c.loopTops[len(c.loopTops)-1]))
	case NodeBreak:
		if len(c.loopEnds) == 0 {
			c.fail(n.Loc, "break outside of foreach")
			return
		}
		ip := c.emitOp(OpJmp, n.Loc)
		c.emit24(0)
		c.patch = append(c.patch, ip+1)
	default:
		// Bare expression statement: evaluate and discard.
		c.compileExpr(n)
		c.emitOp(OpPop, n.Loc)
	}
}

func (c *Compiler) compileStoreTarget(target *Node) {
	if target.Kind != NodeID {
		c.fail(target.Loc, "invalid assignment target")
		return
	}
	c.emitOp(OpStore, target.Loc)
	c.emitName(target.Str)
}

// emitName appends an interned-string reference as the instruction's
// operand: a 3-byte handle into the VM's string heap.
func (c *Compiler) emitName(name string) {
	h := c.vm.heap.String(name)
	c.emit24(uint32(h))
}

func (c *Compiler) compileIf(n *Node) {
	var endJumps []int
	for _, arm := range n.IfArms {
		if arm.Cond == nil {
			c.compileBlock(arm.Body)
			continue
		}
		c.compileExpr(arm.Cond)
		testIP := c.emitOp(OpJmpIfFalse, arm.Cond.Loc)
		c.emit24(0)
		c.compileBlock(arm.Body)
		endIP := c.emitOp(OpJmp, arm.Cond.Loc)
		c.emit24(0)
		endJumps = append(endJumps, endIP+1)
		c.patch24(testIP+1, c.here())
	}
	end := c.here()
	for _, ip := range endJumps {
		c.patch24(ip, end)
	}
}

func (c *Compiler) compileForeach(n *Node) {
	c.compileExpr(n.ForeachIter)
	c.emitOp(OpIterator, n.Loc)
	loopHead := c.here()
	c.emitOp(OpIteratorNext, n.Loc)
	endIP := c.emitOp(OpJmpIfFalse, n.Loc)
	c.emit24(0)
	// bind iteration variables: store in reverse declared order, since
	// op_iterator_next pushes [val] for arrays or [key, val] for dicts and
	// each store pops the top of the stack.
	for i := len(n.ForeachVars) - 1; i >= 0; i-- {
		c.emitOp(OpStore, n.Loc)
		c.emitName(n.ForeachVars[i])
	}
	c.loopEnds = append(c.loopEnds, -1)
	patchBase := len(c.patch)
	c.loopTops = append(c.loopTops, int(loopHead))
	c.compileBlock(n.ForeachBody)
	c.loopTops = c.loopTops[:len(c.loopTops)-1]
	c.loopEnds = c.loopEnds[:len(c.loopEnds)-1]
	c.emitOp(OpJmp, n.Loc)
	c.emit24(loopHead)
	end := c.here()
	c.patch24(int(endIP)+1, end)
	c.emitOp(OpPop, n.Loc) // discard iterator
	for _, ip := range c.patch[patchBase:] {
		c.patch24(ip, end)
	}
	c.patch = c.patch[:patchBase]
}

func (c *Compiler) compileFuncDef(n *Node) {
	skipIP := c.emitOp(OpJmp, n.Loc)
	c.emit24(0)
	entry := c.here()

	var params []Param
	for _, p := range n.FuncParams {
		params = append(params, Param{Name: p.Name, Type: resolveTypeExpr(p.Type)})
	}
	var kwparams []KwParam
	for _, k := range n.FuncKwargs {
		kwparams = append(kwparams, KwParam{Key: k.Key, Type: resolveTypeExpr(k.Type), Required: k.Required})
	}
	retType := resolveTypeExpr(n.FuncReturn)

	c.compileBlock(n.FuncBody)
	c.emitConstant(HandleNull, n.Loc)
	c.emitOp(OpReturn, n.Loc)

	c.patch24(skipIP+1, c.here())

	fn := c.vm.heap.NewFunc(n.FuncName, int(entry), params, kwparams, retType)
	idx := c.vm.addConstant(fn)
	c.emitOp(OpConstantFunc, n.Loc)
	c.emit24(idx)
	c.emitOp(OpStore, n.Loc)
	c.emitName(n.FuncName)
}

// resolveTypeExpr maps a parsed type expression to a runtime Type tag.
// Unknown identifiers resolve to TypeAny rather than failing compilation,
// since full user-defined type resolution is a workspace-level concern.
func resolveTypeExpr(te *TypeExpr) Type {
	if te == nil {
		return TypeAny
	}
	var base Type
	switch te.Name {
	case "func":
		base = TypeFunc
	case "str", "string":
		base = TypeString
	case "int", "number":
		base = TypeNumber
	case "bool":
		base = TypeBool
	case "dict":
		base = TypeDict
	case "list", "array":
		base = TypeArray
	case "any":
		base = TypeAny
	default:
		base = TypeAny
	}
	if te.Or != nil {
		base |= resolveTypeExpr(te.Or)
	}
	return base
}

func (c *Compiler) emitConstant(v Handle, loc Location) {
	idx := c.vm.addConstant(v)
	c.emitOp(OpConstant, loc)
	c.emit24(idx)
}

func (c *Compiler) compileExpr(n *Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case NodeBool:
		c.emitConstant(Bool(n.Bool), n.Loc)
	case NodeNumber:
		c.emitConstant(c.vm.heap.NewNumber(n.Num), n.Loc)
	case NodeString:
		c.emitConstant(c.vm.heap.String(n.Str), n.Loc)
	case NodeID:
		c.emitOp(OpLoad, n.Loc)
		c.emitName(n.Str)
	case NodeArray:
		for _, e := range n.List {
			c.compileExpr(e)
		}
		c.emitOp(OpConstantList, n.Loc)
		c.emit24(uint32(len(n.List)))
	case NodeDict:
		for i := 0; i < len(n.List); i += 2 {
			c.compileExpr(n.List[i])
			c.compileExpr(n.List[i+1])
		}
		c.emitOp(OpConstantDict, n.Loc)
		c.emit24(uint32(len(n.List) / 2))
	case NodeOr:
		c.compileExpr(n.L)
		jp := c.emitOp(OpJmpIfTrue, n.Loc)
		c.emit24(0)
		c.emitOp(OpPop, n.Loc)
		c.compileExpr(n.R)
		c.patch24(jp+1, c.here())
	case NodeAnd:
		c.compileExpr(n.L)
		jp := c.emitOp(OpJmpIfFalse, n.Loc)
		c.emit24(0)
		c.emitOp(OpPop, n.Loc)
		c.compileExpr(n.R)
		c.patch24(jp+1, c.here())
	case NodeComparison:
		c.compileExpr(n.L)
		c.compileExpr(n.R)
		switch n.CompareOp {
		case CompEqual:
			c.emitOp(OpEq, n.Loc)
		case CompNequal:
			c.emitOp(OpEq, n.Loc)
			c.emitOp(OpNot, n.Loc)
		case CompIn:
			c.emitOp(OpIn, n.Loc)
		case CompNotIn:
			c.emitOp(OpIn, n.Loc)
			c.emitOp(OpNot, n.Loc)
		case CompLt:
			c.emitOp(OpLt, n.Loc)
		case CompGt:
			c.emitOp(OpGt, n.Loc)
		case CompLe:
			c.emitOp(OpGt, n.Loc)
			c.emitOp(OpNot, n.Loc)
		case CompGe:
			c.emitOp(OpLt, n.Loc)
			c.emitOp(OpNot, n.Loc)
		}
	case NodeArithmetic:
		c.compileExpr(n.L)
		c.compileExpr(n.R)
		switch n.ArithOp {
		case ArithAdd:
			c.emitOp(OpAdd, n.Loc)
		case ArithSub:
			c.emitOp(OpSub, n.Loc)
		case ArithMul:
			c.emitOp(OpMul, n.Loc)
		case ArithDiv:
			c.emitOp(OpDiv, n.Loc)
		case ArithMod:
			c.emitOp(OpMod, n.Loc)
		}
	case NodeNot:
		c.compileExpr(n.L)
		c.emitOp(OpNot, n.Loc)
	case NodeUnaryMinus:
		c.compileExpr(n.L)
		c.emitOp(OpNegate, n.Loc)
	case NodeStringify:
		c.compileExpr(n.L)
		c.emitOp(OpStringify, n.Loc)
	case NodeIndex:
		c.compileExpr(n.L)
		c.compileExpr(n.R)
		c.emitOp(OpIndex, n.Loc)
	case NodeTernary:
		c.compileExpr(n.L)
		jpFalse := c.emitOp(OpJmpIfFalse, n.Loc)
		c.emit24(0)
		c.compileExpr(n.R)
		jpEnd := c.emitOp(OpJmp, n.Loc)
		c.emit24(0)
		c.patch24(jpFalse+1, c.here())
		c.compileExpr(n.C)
		c.patch24(jpEnd+1, c.here())
	case NodeCall:
		c.compileCall(n)
	case NodeMethod:
		c.compileExpr(n.L)
		for _, a := range n.List {
			c.compileArgument(a)
		}
		c.emitOp(OpCallMethod, n.Loc)
		c.emitName(n.Str)
		nPos, nKw := countArgs(n.List)
		c.emit24(uint32(nPos))
		c.emit24(uint32(nKw))
	default:
		c.fail(n.Loc, "cannot compile node kind %d as expression", n.Kind)
	}
}

func countArgs(args []*Node) (pos, kw int) {
	for _, a := range args {
		if a.ArgKeyword != "" {
			kw++
		} else {
			pos++
		}
	}
	return
}

func (c *Compiler) compileArgument(a *Node) {
	if a.ArgKeyword != "" {
		c.emitConstant(c.vm.heap.String(a.ArgKeyword), a.Loc)
	}
	c.compileExpr(a.L)
}

func (c *Compiler) compileCall(n *Node) {
	callee := n.L
	if callee.Kind == NodeID {
		if idx, ok := c.vm.natives.LookupFree(callee.Str); ok {
			for _, a := range n.List {
				c.compileArgument(a)
			}
			nPos, nKw := countArgs(n.List)
			c.emitOp(OpCallNative, n.Loc)
			c.emit24(uint32(nPos))
			c.emit24(uint32(nKw))
			c.emit24(uint32(idx))
			return
		}
	}
	c.compileExpr(callee)
	for _, a := range n.List {
		c.compileArgument(a)
	}
	nPos, nKw := countArgs(n.List)
	c.emitOp(OpCall, n.Loc)
	c.emit24(uint32(nPos))
	c.emit24(uint32(nKw))
}
