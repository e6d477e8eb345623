package cmd

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/adiv5"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/annot"
)

// annotationPrinter writes the decoder annotation stream when --verbose is
// set, one line per record.
func annotationPrinter() annot.Emitter {
	if !verbose {
		return annot.Discard
	}
	return annot.EmitterFunc(func(a annot.Annotation) {
		fmt.Printf("%10d..%-10d %-16s %s\n", a.Begin, a.End, a.Class, a.Texts[0])
	})
}

// transactionPrinter prints each decoded register transaction and feeds it
// into the register model.
func transactionPrinter(model *adiv5.Model) adiv5.Sink {
	return adiv5.SinkFunc(func(begin, end uint64, t adiv5.Transaction) {
		fmt.Printf("%10d %-8s dp%d %-14s [%02x] %-11s %08x\n",
			begin, t.Op, t.DP, t.Reg, t.Addr, t.Ack, t.Data)
		model.Transaction(begin, end, t)
	})
}

// dumpModel pretty-prints the final DP/AP register state.
func dumpModel(model *adiv5.Model) {
	dps := model.DPs()
	if len(dps) == 0 {
		fmt.Println("No debug port state reconstructed.")
		return
	}
	spew.Dump(dps)
}
