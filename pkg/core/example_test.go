package core_test

import (
	"context"
	"fmt"
	"os"

	"github.com/lefred/mysql-component-viruscan/pkg/core"
)

// ExampleScanBytes checks a single buffer against a signature directory.
func ExampleScanBytes() {
	names, err := core.ScanBytes("/var/lib/viruscan", []byte("some upload"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		return
	}
	if len(names) == 0 {
		fmt.Println("clean")
		return
	}
	fmt.Println("infected:", names)
}

// ExampleNew installs a component into an in-process host and calls its
// functions the way a database session would.
func ExampleNew() {
	ctx := context.Background()
	provider, err := core.NewStaticProvider(core.Grant{
		Account:    "app@%",
		Privileges: []string{core.PrivilegeVirusScan},
	})
	if err != nil {
		panic(err)
	}

	h := core.NewHost()
	c := core.New(core.Deps{Provider: provider, Dir: "/var/lib/viruscan"})
	if err := c.Init(ctx, h); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		return
	}
	defer c.Deinit(h)

	caller := core.Caller{User: "app", Host: "web1"}
	out, err := h.Call(ctx, caller, "virus_scan", [][]byte{[]byte("some upload")})
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan: %v\n", err)
		return
	}
	fmt.Println(out)

	_ = core.MarshalMatches(os.Stdout, core.Matches(c))
}
