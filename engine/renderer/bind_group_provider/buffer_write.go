package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BufferWrite is a queued upload of Data into the buffer bound at Binding of Provider,
// starting Offset bytes in. Uploads are applied before the compute frame that reads them.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// Target returns the destination buffer, or nil when the provider has nothing bound there yet.
func (w BufferWrite) Target() *wgpu.Buffer {
	if w.Provider == nil {
		return nil
	}
	return w.Provider.Buffer(w.Binding)
}
