package packet

import (
	"errors"
	"fmt"
	"net"
)

// ResultCode is the 4-bit RCODE field of the DNS header.
type ResultCode uint8

// The result codes this resolver understands. Any other wire value
// decodes as NOERROR, matching the source's observed behavior of never
// rejecting an unrecognized rescode outright.
const (
	NOERROR  ResultCode = 0
	FORMERR  ResultCode = 1
	SERVFAIL ResultCode = 2
	NXDOMAIN ResultCode = 3
	NOTIMP   ResultCode = 4
	REFUSED  ResultCode = 5
)

func resultCodeFromU8(v uint8) ResultCode {
	switch v {
	case 1, 2, 3, 4, 5:
		return ResultCode(v)
	default:
		return NOERROR
	}
}

// QueryType is the DNS record type field. Known values have named
// constants. Any other value is kept as its number: a Question carries it
// as is and writes it back unchanged, while a Record decodes it as
// QTypeUnknown with the number in UnknownType and cannot be written.
type QueryType uint16

const (
	QTypeUnknown QueryType = 0
	QTypeA       QueryType = 1
	QTypeNS      QueryType = 2
	QTypeCNAME   QueryType = 5
	QTypeSOA     QueryType = 6
	QTypeMX      QueryType = 15
	QTypeTXT     QueryType = 16
	QTypeAAAA    QueryType = 28
)

func (t QueryType) String() string {
	switch t {
	case QTypeA:
		return "A"
	case QTypeNS:
		return "NS"
	case QTypeCNAME:
		return "CNAME"
	case QTypeSOA:
		return "SOA"
	case QTypeMX:
		return "MX"
	case QTypeTXT:
		return "TXT"
	case QTypeAAAA:
		return "AAAA"
	default:
		return fmt.Sprintf("TYPE%d", uint16(t))
	}
}

// ErrUnsupportedRecord is returned when writing a record type that the
// codec only knows how to read (currently UNKNOWN).
var ErrUnsupportedRecord = errors.New("packet: unsupported record for encode")

// Header is the fixed 12-byte DNS message header.
type Header struct {
	ID uint16

	RecursionDesired    bool
	TruncatedMessage    bool
	AuthoritativeAnswer bool
	Opcode              uint8
	Response            bool

	ResCode           ResultCode
	CheckingDisabled  bool
	AuthedData        bool
	Z                 bool
	RecursionAvailable bool

	Questions            uint16
	Answers              uint16
	AuthoritativeEntries uint16
	ResourceEntries      uint16
}

// Read populates h from buf, advancing 12 bytes.
func (h *Header) Read(buf *Buffer) error {
	id, err := buf.ReadU16()
	if err != nil {
		return err
	}
	h.ID = id

	flags, err := buf.ReadU16()
	if err != nil {
		return err
	}
	hi := byte(flags >> 8)
	lo := byte(flags)

	h.RecursionDesired = hi&0x01 != 0
	h.TruncatedMessage = hi&0x02 != 0
	h.AuthoritativeAnswer = hi&0x04 != 0
	h.Opcode = (hi >> 3) & 0x0F
	h.Response = hi&0x80 != 0

	h.ResCode = resultCodeFromU8(lo & 0x0F)
	h.CheckingDisabled = lo&0x10 != 0
	h.AuthedData = lo&0x20 != 0
	h.Z = lo&0x40 != 0
	h.RecursionAvailable = lo&0x80 != 0

	if h.Questions, err = buf.ReadU16(); err != nil {
		return err
	}
	if h.Answers, err = buf.ReadU16(); err != nil {
		return err
	}
	if h.AuthoritativeEntries, err = buf.ReadU16(); err != nil {
		return err
	}
	if h.ResourceEntries, err = buf.ReadU16(); err != nil {
		return err
	}
	return nil
}

// Write serializes h into buf.
func (h *Header) Write(buf *Buffer) error {
	if err := buf.WriteU16(h.ID); err != nil {
		return err
	}

	var hi, lo byte
	if h.RecursionDesired {
		hi |= 0x01
	}
	if h.TruncatedMessage {
		hi |= 0x02
	}
	if h.AuthoritativeAnswer {
		hi |= 0x04
	}
	hi |= (h.Opcode & 0x0F) << 3
	if h.Response {
		hi |= 0x80
	}

	lo |= byte(h.ResCode) & 0x0F
	if h.CheckingDisabled {
		lo |= 0x10
	}
	if h.AuthedData {
		lo |= 0x20
	}
	if h.Z {
		lo |= 0x40
	}
	if h.RecursionAvailable {
		lo |= 0x80
	}

	if err := buf.WriteU16(uint16(hi)<<8 | uint16(lo)); err != nil {
		return err
	}
	if err := buf.WriteU16(h.Questions); err != nil {
		return err
	}
	if err := buf.WriteU16(h.Answers); err != nil {
		return err
	}
	if err := buf.WriteU16(h.AuthoritativeEntries); err != nil {
		return err
	}
	return buf.WriteU16(h.ResourceEntries)
}

// Question is a single entry in the question section.
type Question struct {
	Name  string
	QType QueryType
}

// Read decodes a question: name, type, class (class is read and ignored).
func (q *Question) Read(buf *Buffer) error {
	name, err := buf.ReadName()
	if err != nil {
		return err
	}
	q.Name = name

	qtype, err := buf.ReadU16()
	if err != nil {
		return err
	}
	q.QType = QueryType(qtype)

	if _, err := buf.ReadU16(); err != nil { // class, ignored
		return err
	}
	return nil
}

// Write encodes a question, always with class IN (1).
func (q *Question) Write(buf *Buffer) error {
	if err := buf.WriteName(q.Name); err != nil {
		return err
	}
	if err := buf.WriteU16(uint16(q.QType)); err != nil {
		return err
	}
	return buf.WriteU16(1)
}

// Record is a single resource record. Only the fields relevant to its
// Type are meaningful; the zero value of the others is unused.
type Record struct {
	Name string
	Type QueryType
	TTL  uint32

	// A / AAAA
	IP net.IP

	// NS / CNAME
	Host string

	// MX
	Priority uint16
	MXHost   string

	// SOA
	MName, RName                               string
	Serial, Refresh, Retry, Expire, Minimum    uint32

	// TXT
	Text string

	// UNKNOWN
	UnknownType QueryType
	DataLen     uint16
}

// Read decodes name, type, class, ttl, rdlength and then the type-specific
// rdata, per the fixed subset this resolver understands.
func (r *Record) Read(buf *Buffer) error {
	name, err := buf.ReadName()
	if err != nil {
		return err
	}
	r.Name = name

	typeVal, err := buf.ReadU16()
	if err != nil {
		return err
	}
	qtype := QueryType(typeVal)

	if _, err := buf.ReadU16(); err != nil { // class, ignored
		return err
	}

	ttl, err := buf.ReadU32()
	if err != nil {
		return err
	}
	r.TTL = ttl

	rdlen, err := buf.ReadU16()
	if err != nil {
		return err
	}

	switch qtype {
	case QTypeA:
		if rdlen != 4 {
			return ErrMalformedName
		}
		raw, err := buf.ReadRange(4)
		if err != nil {
			return err
		}
		r.Type = QTypeA
		r.IP = net.IPv4(raw[0], raw[1], raw[2], raw[3])
	case QTypeAAAA:
		if rdlen != 16 {
			return ErrMalformedName
		}
		ip := make(net.IP, 16)
		for i := 0; i < 8; i++ {
			word, err := buf.ReadU16()
			if err != nil {
				return err
			}
			ip[i*2] = byte(word >> 8)
			ip[i*2+1] = byte(word)
		}
		r.Type = QTypeAAAA
		r.IP = ip
	case QTypeNS:
		host, err := buf.ReadName()
		if err != nil {
			return err
		}
		r.Type = QTypeNS
		r.Host = host
	case QTypeCNAME:
		host, err := buf.ReadName()
		if err != nil {
			return err
		}
		r.Type = QTypeCNAME
		r.Host = host
	case QTypeMX:
		prio, err := buf.ReadU16()
		if err != nil {
			return err
		}
		host, err := buf.ReadName()
		if err != nil {
			return err
		}
		r.Type = QTypeMX
		r.Priority = prio
		r.MXHost = host
	case QTypeSOA:
		start := buf.Position()
		mname, err := buf.ReadName()
		if err != nil {
			return err
		}
		rname, err := buf.ReadName()
		if err != nil {
			return err
		}
		serial, err := buf.ReadU32()
		if err != nil {
			return err
		}
		refresh, err := buf.ReadU32()
		if err != nil {
			return err
		}
		retry, err := buf.ReadU32()
		if err != nil {
			return err
		}
		expire, err := buf.ReadU32()
		if err != nil {
			return err
		}
		minimum, err := buf.ReadU32()
		if err != nil {
			return err
		}
		if buf.Position()-start != int(rdlen) {
			return ErrMalformedName
		}
		r.Type = QTypeSOA
		r.MName, r.RName = mname, rname
		r.Serial, r.Refresh, r.Retry, r.Expire, r.Minimum = serial, refresh, retry, expire, minimum
	case QTypeTXT:
		textLen, err := buf.Read()
		if err != nil {
			return err
		}
		raw, err := buf.ReadRange(int(textLen))
		if err != nil {
			return err
		}
		r.Type = QTypeTXT
		r.Text = string(raw)
	default:
		if err := buf.Step(int(rdlen)); err != nil {
			return err
		}
		r.Type = QTypeUnknown
		r.UnknownType = qtype
		r.DataLen = rdlen
	}
	return nil
}

// Write mirrors Read. UNKNOWN records cannot be written.
func (r *Record) Write(buf *Buffer) error {
	switch r.Type {
	case QTypeA:
		if err := buf.WriteName(r.Name); err != nil {
			return err
		}
		if err := buf.WriteU16(uint16(QTypeA)); err != nil {
			return err
		}
		if err := buf.WriteU16(1); err != nil {
			return err
		}
		if err := buf.WriteU32(r.TTL); err != nil {
			return err
		}
		if err := buf.WriteU16(4); err != nil {
			return err
		}
		ip4 := r.IP.To4()
		return buf.WriteRange(ip4)
	case QTypeAAAA:
		if err := buf.WriteName(r.Name); err != nil {
			return err
		}
		if err := buf.WriteU16(uint16(QTypeAAAA)); err != nil {
			return err
		}
		if err := buf.WriteU16(1); err != nil {
			return err
		}
		if err := buf.WriteU32(r.TTL); err != nil {
			return err
		}
		if err := buf.WriteU16(16); err != nil {
			return err
		}
		return buf.WriteRange(r.IP.To16())
	case QTypeNS, QTypeCNAME:
		if err := buf.WriteName(r.Name); err != nil {
			return err
		}
		if err := buf.WriteU16(uint16(r.Type)); err != nil {
			return err
		}
		if err := buf.WriteU16(1); err != nil {
			return err
		}
		if err := buf.WriteU32(r.TTL); err != nil {
			return err
		}
		lenPos := buf.Position()
		if err := buf.WriteU16(0); err != nil {
			return err
		}
		if err := buf.WriteName(r.Host); err != nil {
			return err
		}
		return backpatchLen(buf, lenPos)
	case QTypeMX:
		if err := buf.WriteName(r.Name); err != nil {
			return err
		}
		if err := buf.WriteU16(uint16(QTypeMX)); err != nil {
			return err
		}
		if err := buf.WriteU16(1); err != nil {
			return err
		}
		if err := buf.WriteU32(r.TTL); err != nil {
			return err
		}
		lenPos := buf.Position()
		if err := buf.WriteU16(0); err != nil {
			return err
		}
		if err := buf.WriteU16(r.Priority); err != nil {
			return err
		}
		if err := buf.WriteName(r.MXHost); err != nil {
			return err
		}
		return backpatchLen(buf, lenPos)
	case QTypeSOA:
		if err := buf.WriteName(r.Name); err != nil {
			return err
		}
		if err := buf.WriteU16(uint16(QTypeSOA)); err != nil {
			return err
		}
		if err := buf.WriteU16(1); err != nil {
			return err
		}
		if err := buf.WriteU32(r.TTL); err != nil {
			return err
		}
		lenPos := buf.Position()
		if err := buf.WriteU16(0); err != nil {
			return err
		}
		if err := buf.WriteName(r.MName); err != nil {
			return err
		}
		if err := buf.WriteName(r.RName); err != nil {
			return err
		}
		for _, v := range []uint32{r.Serial, r.Refresh, r.Retry, r.Expire, r.Minimum} {
			if err := buf.WriteU32(v); err != nil {
				return err
			}
		}
		return backpatchLen(buf, lenPos)
	case QTypeTXT:
		if err := buf.WriteName(r.Name); err != nil {
			return err
		}
		if err := buf.WriteU16(uint16(QTypeTXT)); err != nil {
			return err
		}
		if err := buf.WriteU16(1); err != nil {
			return err
		}
		if err := buf.WriteU32(r.TTL); err != nil {
			return err
		}
		if err := buf.WriteU16(uint16(len(r.Text) + 1)); err != nil {
			return err
		}
		if err := buf.Write(byte(len(r.Text))); err != nil {
			return err
		}
		return buf.WriteRange([]byte(r.Text))
	default:
		return ErrUnsupportedRecord
	}
}

// backpatchLen fills in a 2-byte rdlength field at lenPos with the number
// of bytes written since lenPos+2, then leaves the cursor where it was.
func backpatchLen(buf *Buffer, lenPos int) error {
	end := buf.Position()
	rdlen := end - (lenPos + 2)
	if err := buf.SetU16(lenPos, uint16(rdlen)); err != nil {
		return err
	}
	buf.Pos = end
	return nil
}
