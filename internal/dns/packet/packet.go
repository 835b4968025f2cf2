package packet

import "strings"

// Packet is a complete DNS message: header plus the four ordered record
// sections.
type Packet struct {
	Header      Header
	Questions   []Question
	Answers     []Record
	Authorities []Record
	Resources   []Record
}

// NewPacket returns an empty Packet ready to have entries pushed onto it.
func NewPacket() *Packet {
	return &Packet{}
}

// Decode reads a complete packet from buf: the 12-byte header, then each
// section in turn, using the header's counts to know how many entries to
// read from each. Any codec failure propagates immediately.
func Decode(buf *Buffer) (*Packet, error) {
	p := NewPacket()
	if err := p.Header.Read(buf); err != nil {
		return nil, err
	}

	for i := 0; i < int(p.Header.Questions); i++ {
		var q Question
		if err := q.Read(buf); err != nil {
			return nil, err
		}
		p.Questions = append(p.Questions, q)
	}
	for i := 0; i < int(p.Header.Answers); i++ {
		var r Record
		if err := r.Read(buf); err != nil {
			return nil, err
		}
		p.Answers = append(p.Answers, r)
	}
	for i := 0; i < int(p.Header.AuthoritativeEntries); i++ {
		var r Record
		if err := r.Read(buf); err != nil {
			return nil, err
		}
		p.Authorities = append(p.Authorities, r)
	}
	for i := 0; i < int(p.Header.ResourceEntries); i++ {
		var r Record
		if err := r.Read(buf); err != nil {
			return nil, err
		}
		p.Resources = append(p.Resources, r)
	}
	return p, nil
}

// Encode writes the header (with counts derived from the current section
// lengths) followed by all four sections, in order, into buf. The caller
// takes buf.Buf[:buf.Position()] as the outgoing datagram.
func (p *Packet) Encode(buf *Buffer) error {
	p.Header.Questions = uint16(len(p.Questions))
	p.Header.Answers = uint16(len(p.Answers))
	p.Header.AuthoritativeEntries = uint16(len(p.Authorities))
	p.Header.ResourceEntries = uint16(len(p.Resources))

	if err := p.Header.Write(buf); err != nil {
		return err
	}
	for i := range p.Questions {
		if err := p.Questions[i].Write(buf); err != nil {
			return err
		}
	}
	for i := range p.Answers {
		if err := p.Answers[i].Write(buf); err != nil {
			return err
		}
	}
	for i := range p.Authorities {
		if err := p.Authorities[i].Write(buf); err != nil {
			return err
		}
	}
	for i := range p.Resources {
		if err := p.Resources[i].Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// isSuffix reports whether qname ends in name, comparing dot-separated
// labels case-insensitively (both inputs are already lowercase coming out
// of the codec, but this holds regardless).
func isSuffix(qname, name string) bool {
	qname = strings.ToLower(qname)
	name = strings.ToLower(name)
	if qname == name {
		return true
	}
	return strings.HasSuffix(qname, "."+name)
}

// GetResolvedNS looks for an authority NS record whose name is a suffix of
// qname and for which the resources section carries a matching glue A
// record, returning the first such IP. This is how the engine follows a
// glued referral without an extra lookup.
func (p *Packet) GetResolvedNS(qname string) (string, bool) {
	for _, auth := range p.Authorities {
		if auth.Type != QTypeNS || !isSuffix(qname, auth.Name) {
			continue
		}
		for _, res := range p.Resources {
			if res.Type == QTypeA && strings.EqualFold(res.Name, auth.Host) {
				return res.IP.String(), true
			}
		}
	}
	return "", false
}

// GetUnresolvedNS returns the first authority NS host, among those whose
// name is a suffix of qname, that has no matching glue A record in
// resources -- the host the engine must resolve itself before it can
// continue the walk.
func (p *Packet) GetUnresolvedNS(qname string) (string, bool) {
	for _, auth := range p.Authorities {
		if auth.Type != QTypeNS || !isSuffix(qname, auth.Name) {
			continue
		}
		glued := false
		for _, res := range p.Resources {
			if res.Type == QTypeA && strings.EqualFold(res.Name, auth.Host) {
				glued = true
				break
			}
		}
		if !glued {
			return auth.Host, true
		}
	}
	return "", false
}

// GetRandomA returns the first A record in the answers section. Despite
// the name it is not randomized -- it picks the first match, mirroring
// the behavior of the implementation this resolver is modeled on.
func (p *Packet) GetRandomA() (string, bool) {
	for _, a := range p.Answers {
		if a.Type == QTypeA {
			return a.IP.String(), true
		}
	}
	return "", false
}
