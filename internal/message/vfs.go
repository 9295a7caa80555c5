package message

import "encoding/json"

// VFSProcess is the node's virtual filesystem process.
const VFSProcess = "vfs:distro:sys"

type vfsRequest struct {
	Path   string `json:"path"`
	Action string `json:"action"`
}

// ReadDir returns the body of a directory-listing request for path.
func ReadDir(path string) string {
	return vfsBody(path, "ReadDir")
}

// Write returns the body of a file write request for path. The file
// contents travel as the envelope's binary payload.
func Write(path string) string {
	return vfsBody(path, "Write")
}

func vfsBody(path, action string) string {
	data, _ := json.Marshal(vfsRequest{Path: path, Action: action})
	return string(data)
}
