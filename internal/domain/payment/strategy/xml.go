package strategy

import (
	"encoding/xml"
	"io"
	"sort"
)

// xmlParams 微信 v2 接口的扁平 XML: <xml><k><![CDATA[v]]></k>...</xml>
type xmlParams map[string]string

type cdata struct {
	Value string `xml:",cdata"`
}

func (m xmlParams) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{Name: xml.Name{Local: "xml"}}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := e.EncodeElement(cdata{Value: m[k]}, xml.StartElement{Name: xml.Name{Local: k}}); err != nil {
			return err
		}
	}
	if err := e.EncodeToken(start.End()); err != nil {
		return err
	}
	return e.Flush()
}

func (m *xmlParams) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	*m = xmlParams{}
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var v string
			if err := d.DecodeElement(&v, &t); err != nil {
				return err
			}
			(*m)[t.Name.Local] = v
		case xml.EndElement:
			return nil
		}
	}
}
