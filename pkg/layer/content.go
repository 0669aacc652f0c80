package layer

// ContentType 记录层的内容类型
type ContentType uint8

const (
	ContentTypeChangeCipherSpec ContentType = 20
	ContentTypeAlert            ContentType = 21
	ContentTypeHandshake        ContentType = 22
	ContentTypeApplicationData  ContentType = 23
)

func (c ContentType) String() string {
	switch c {
	case ContentTypeChangeCipherSpec:
		return "ChangeCipherSpec"
	case ContentTypeAlert:
		return "Alert"
	case ContentTypeHandshake:
		return "Handshake"
	case ContentTypeApplicationData:
		return "ApplicationData"
	default:
		return "Uknown"
	}
}

func (c ContentType) valid() bool {
	return c >= ContentTypeChangeCipherSpec && c <= ContentTypeApplicationData
}

type Content interface {
	ContentType() ContentType
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// ApplicationData 应用层数据，对记录层来说是不透明的字节
type ApplicationData struct {
	Data []byte
}

func (a *ApplicationData) Marshal() ([]byte, error) {
	return append([]byte{}, a.Data...), nil
}

func (a *ApplicationData) Unmarshal(data []byte) error {
	a.Data = append([]byte{}, data...)
	return nil
}

func (a *ApplicationData) ContentType() ContentType {
	return ContentTypeApplicationData
}
