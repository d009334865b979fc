package ui

//go:generate sh -c "cd ../.. && GOOS=js GOARCH=wasm go build -o internal/ui/dist/main.wasm ./cmd/contactwasm"
//go:generate sh -c "root=$(go env GOROOT); src=$root/lib/wasm/wasm_exec.js; [ -f \"$src\" ] || src=$root/misc/wasm/wasm_exec.js; cp \"$src\" dist/wasm_exec.js"
