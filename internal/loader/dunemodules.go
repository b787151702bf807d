package loader

// Built-in dune: virtual modules (SPEC_FULL.md §6.4): a minimal
// standard library in the shape of Deno's "dune:..." internal
// modules, without importing Deno's own source. console is a global
// rather than an import in this runtime, so dune:console is a no-op
// placeholder module kept for import-compatibility with scripts that
// `import 'dune:console'` out of habit; dune:assert is a small real
// assertion helper.
func init() {
	DuneModules["console"] = "export default globalThis.console;\n"
	DuneModules["assert"] = `export default function assert(condition, message) {
	if (!condition) {
		throw new Error(message || "assertion failed");
	}
}
`
}
