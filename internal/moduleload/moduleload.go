// Package moduleload provides the minimal path-resolution and
// cycle-check stub needed for spawn_vm to return the module-loader
// error kinds §7 lists as "delegated" — it does not load or execute
// real script files; that remains a stated collaborator (§1).
//
// Grounded on spawn_vm in actor.cpp: a "." module name resolves to
// the calling fiber's own SOURCE_PATH, any other name is resolved
// relative to the directory of the caller's source path, and
// resolution failures are
// mapped to one of a small set of structured errors rather than a
// bare OS error.
package moduleload

import (
	"path"
	"strings"

	"github.com/strandrt/fibercore/internal/actorerr"
)

// Resolver records which module paths belong to root contexts
// (MarkRoot); it does not itself reject anything. Cycle and leaf
// checks are the package functions CheckCycle and CheckLeaf. One
// Resolver is shared by every VM an application context spawns.
type Resolver struct {
	// roots is the set of module paths that were spawned without a
	// parent (root contexts) — a root may not import "..", i.e.
	// reach outside its own tree.
	roots map[string]bool
}

// New returns an empty Resolver.
func New() *Resolver {
	return &Resolver{roots: make(map[string]bool)}
}

// MarkRoot records path as a root context's module, per spawn_vm's
// ContextType::worker / ContextType::main_vm distinction upstream.
func (r *Resolver) MarkRoot(modulePath string) {
	r.roots[modulePath] = true
}

// Resolve implements the module-name resolution spawn_vm performs:
// "." resolves to callerSourcePath (the current fiber's own module),
// any other name is validated and joined against callerSourcePath's
// directory. isMainFiber gates the "only the main fiber of a VM may
// import" rule; callerSourcePath being a root module gates the
// "root cannot import parent" rule.
func Resolve(module, callerSourcePath string, isMainFiber, callerIsRoot bool) (string, error) {
	if module == "" {
		return "", actorerr.New(actorerr.InvalidModuleName, "module name is empty")
	}

	if module == "." {
		if callerSourcePath == "" {
			return "", actorerr.New(actorerr.BadRootContext,
				"self-spawn requires a resolvable source path")
		}
		return callerSourcePath, nil
	}

	if !isMainFiber {
		return "", actorerr.New(actorerr.OnlyMainFiberMayImport,
			"only the VM's main fiber may import a module")
	}

	if strings.Contains(module, "\x00") {
		return "", actorerr.New(actorerr.InvalidModuleName,
			"module name contains a NUL byte")
	}

	if strings.HasPrefix(module, "..") && callerIsRoot {
		return "", actorerr.New(actorerr.RootCannotImportParent,
			"a root VM cannot import a module outside its own tree")
	}

	dir := path.Dir(callerSourcePath)
	resolved := path.Clean(path.Join(dir, module))
	return resolved, nil
}

// CheckCycle reports CyclicImport if target already appears in chain
// (the list of module paths from the root VM down to the one
// currently spawning target), per actor.cpp's cyclic-import
// rejection during module resolution.
func CheckCycle(chain []string, target string) error {
	for _, m := range chain {
		if m == target {
			return actorerr.New(actorerr.CyclicImport,
				"module "+target+" is already on the import chain")
		}
	}
	return nil
}

// CheckLeaf rejects a leaf (non-root) VM importing a child module, a
// restriction actor.cpp enforces because only root/worker contexts
// may spawn further workers.
func CheckLeaf(callerIsLeaf bool) error {
	if callerIsLeaf {
		return actorerr.New(actorerr.LeafCannotImportChild,
			"a leaf actor may not import a child module")
	}
	return nil
}
