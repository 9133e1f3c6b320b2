// Command billingctl runs billing operations from the shell: usage imports,
// balance lookups, penalty sweeps and contract registration.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/angelmondragon/propertyledger-backend/internal/app"
)

func main() {
	var opened *app.Runtime
	open := func(ctx context.Context) (*app.Runtime, error) {
		rt, err := openRuntime(ctx)
		opened = rt
		return rt, err
	}

	err := newRootCmd(open).ExecuteContext(context.Background())
	// PersistentPostRun is skipped when a command fails, so close here.
	if opened != nil {
		opened.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "billingctl: %v\n", err)
		os.Exit(1)
	}
}
