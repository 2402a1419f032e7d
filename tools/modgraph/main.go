// Command modgraph prints a Graphviz DOT description of talus's own
// package import graph, rooted at the module given on the command line
// (default "talus/...").
package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"golang.org/x/tools/go/packages"
)

func main() {
	pattern := "talus/..."
	if len(os.Args) > 1 {
		pattern = os.Args[1]
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		fmt.Fprintln(os.Stderr, "modgraph:", err)
		os.Exit(1)
	}
	if packages.PrintErrors(pkgs) > 0 {
		os.Exit(1)
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	fmt.Fprintln(w, "digraph deps {")
	for _, pkg := range pkgs {
		var imports []string
		for path := range pkg.Imports {
			imports = append(imports, path)
		}
		sort.Strings(imports)
		for _, path := range imports {
			fmt.Fprintf(w, "    %q -> %q;\n", pkg.PkgPath, path)
		}
	}
	fmt.Fprintln(w, "}")
}
