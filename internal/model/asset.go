package model

// Asset is a binary upload attached to a document at commit time.
type Asset struct {
	Name     string
	MIMEType string
	Data     []byte
}

func (a *Asset) Empty() bool {
	return a == nil || len(a.Data) == 0
}
