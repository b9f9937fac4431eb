// greenline drives the authorization and tenancy core from the command line: sign in, switch
// organizations, check permissions and routes, and work on quotes.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	c := &cli{}
	err := newRootCmd(c).ExecuteContext(context.Background())
	if cerr := c.close(context.Background()); cerr != nil {
		fmt.Fprintln(os.Stderr, "close:", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}
