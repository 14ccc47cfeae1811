// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package repl_test

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sumfold/sumfold/optimizer"
	"github.com/sumfold/sumfold/repl"
)

func ExampleREPL_OneShot() {

	ctx := context.Background()

	// Create a buffer that will receive REPL output.
	var buf bytes.Buffer

	// Create a new REPL.
	r := repl.New(optimizer.New(), "", &buf, "pretty", "")

	// Register an accumulator and sum into it. The loop is echoed in its
	// optimized form.
	_ = r.OneShot(ctx, "S = 0")
	_ = r.OneShot(ctx, "for i in range(100): S += i")

	// Print the value of the accumulator.
	_ = r.OneShot(ctx, "S")

	fmt.Print(buf.String())

	// Output:
	// # S = 4950
	// 4950
}
