package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/funvibe/matchgen/internal/config"
)

// Tag emits the computation of the 32-bit tag of the term val and returns
// it. A term with its low bit set is an immediate whose tag sits in the
// upper half of the word; any other term points to a block whose header
// holds the tag. Both paths meet in a fresh block, which becomes the
// current block.
func (d *Decision) Tag(val value.Value) (value.Value, error) {
	if _, ok := val.Type().(*types.PointerType); !ok {
		return nil, fmt.Errorf("%w (%s)", ErrTagSubject, val.Type())
	}
	blockPtr := d.Types.BlockPtr()
	if !types.Equal(val.Type(), blockPtr) {
		val = d.CurrentBlock.NewBitCast(val, blockPtr)
	}

	word := d.CurrentBlock.NewPtrToInt(val, types.I64)
	isImmediate := d.CurrentBlock.NewTrunc(word, types.I1)

	immBlock := d.newBlock(config.ConstBlockName)
	heapBlock := d.newBlock(config.HeapBlockName)
	merge := d.newBlock(config.TagBlockName)
	d.CurrentBlock.NewCondBr(isImmediate, immBlock, heapBlock)

	shifted := immBlock.NewLShr(word, constant.NewInt(types.I64, config.ImmediateTagShift))
	immBlock.NewBr(merge)

	zero := constant.NewInt(types.I32, 0)
	headerPtr := heapBlock.NewGetElementPtr(d.Types.Block(), val, constant.NewInt(types.I64, 0), zero, zero)
	headerPtr.InBounds = true
	header := heapBlock.NewLoad(types.I64, headerPtr)
	heapBlock.NewBr(merge)

	phi := merge.NewPhi(ir.NewIncoming(header, heapBlock), ir.NewIncoming(shifted, immBlock))
	phi.SetName(d.localName(config.TagPhiName))
	d.CurrentBlock = merge
	return merge.NewTrunc(phi, types.I32), nil
}
