package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// errNoAnswer marks the two resolution outcomes that are not failures:
// NXDOMAIN and an empty answer for the asked type.
var errNoAnswer = errors.New("no answer")

// dnsBackend is the wire capability behind the command and query layers:
// one signed exchange with the authoritative server, one zone transfer.
type dnsBackend interface {
	exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error)
	transfer(ctx context.Context, msg *dns.Msg) ([]dns.RR, error)
}

type bindBackend struct {
	server      string
	tsigKeyName string
	tsigSecret  string
	timeout     time.Duration
}

func newBindBackend(cfg config) *bindBackend {
	return &bindBackend{
		server:      cfg.BindServer,
		tsigKeyName: cfg.TSIGKeyName,
		tsigSecret:  cfg.TSIGSecret,
		timeout:     cfg.DNSTimeout,
	}
}

// Dynamic updates and authoritative queries go over TCP so answers are
// never truncated.
func (b *bindBackend) exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	c := &dns.Client{Net: "tcp", Timeout: b.timeout}
	if b.tsigKeyName != "" {
		c.TsigSecret = map[string]string{b.tsigKeyName: b.tsigSecret}
	}
	resp, _, err := c.ExchangeContext(ctx, msg, b.server)
	return resp, err
}

func (b *bindBackend) transfer(_ context.Context, msg *dns.Msg) ([]dns.RR, error) {
	t := &dns.Transfer{
		DialTimeout:  b.timeout,
		ReadTimeout:  b.timeout,
		WriteTimeout: b.timeout,
	}
	if b.tsigKeyName != "" {
		t.TsigSecret = map[string]string{b.tsigKeyName: b.tsigSecret}
		msg.SetTsig(b.tsigKeyName, dns.HmacSHA256, 300, time.Now().Unix())
	}

	envelopes, err := t.In(msg, b.server)
	if err != nil {
		return nil, err
	}

	var rrs []dns.RR
	for env := range envelopes {
		if env.Error != nil {
			return nil, env.Error
		}
		rrs = append(rrs, env.RR...)
	}
	return rrs, nil
}

// dnsManager is the record command and query layer scoped to the single
// allowed zone.
type dnsManager struct {
	backend     dnsBackend
	zone        string
	tsigKeyName string
	defaultTTL  uint32
}

func newDNSManager(backend dnsBackend, cfg config) *dnsManager {
	return &dnsManager{
		backend:     backend,
		zone:        cfg.AllowedZone,
		tsigKeyName: cfg.TSIGKeyName,
		defaultTTL:  cfg.DefaultTTL,
	}
}

// buildRR validates a record intent and renders it into an RR at the
// given name. The type string is free-form; the nameserver has the final
// word on whether it is meaningful.
func (d *dnsManager) buildRR(fqdn string, rec record) (dns.RR, error) {
	recordType := strings.ToUpper(strings.TrimSpace(rec.RecordType))
	if recordType == "" {
		return nil, validationError("record_type is required")
	}
	if strings.TrimSpace(rec.RecordValue) == "" {
		return nil, validationError("record_value is required")
	}
	if rec.TTL < 0 {
		return nil, validationError("ttl must be a positive integer")
	}
	ttl := uint32(rec.TTL)
	if ttl == 0 {
		ttl = d.defaultTTL
	}

	rr, err := dns.NewRR(fmt.Sprintf("%s %d IN %s %s", normalizeName(fqdn), ttl, recordType, rec.RecordValue))
	if err != nil {
		return nil, validationError("invalid %s record: %v", recordType, err)
	}
	if rr == nil {
		return nil, validationError("invalid %s record", recordType)
	}
	return rr, nil
}

func (d *dnsManager) submit(ctx context.Context, msg *dns.Msg) error {
	if d.tsigKeyName != "" {
		msg.SetTsig(d.tsigKeyName, dns.HmacSHA256, 300, time.Now().Unix())
	}

	resp, err := d.backend.exchange(ctx, msg)
	if err != nil {
		return upstreamDNSError("dynamic update failed: %v", err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return upstreamDNSError("dynamic update refused: %s", dns.RcodeToString[resp.Rcode])
	}
	return nil
}

func (d *dnsManager) createRecord(ctx context.Context, fqdn string, rec record) error {
	rr, err := d.buildRR(fqdn, rec)
	if err != nil {
		return err
	}

	msg := new(dns.Msg)
	msg.SetUpdate(d.zone)
	msg.Insert([]dns.RR{rr})
	return d.submit(ctx, msg)
}

// deleteRecord removes one value when recordValue is given, otherwise the
// whole RRset of that type. Deleting what is not there is a no-op on the
// server side and reported as success here.
func (d *dnsManager) deleteRecord(ctx context.Context, fqdn, recordType, recordValue string) error {
	msg := new(dns.Msg)
	msg.SetUpdate(d.zone)

	if strings.TrimSpace(recordValue) != "" {
		rr, err := d.buildRR(fqdn, record{RecordType: recordType, RecordValue: recordValue})
		if err != nil {
			return err
		}
		msg.Remove([]dns.RR{rr})
	} else {
		rr, err := d.rrsetStub(fqdn, recordType)
		if err != nil {
			return err
		}
		msg.RemoveRRset([]dns.RR{rr})
	}

	return d.submit(ctx, msg)
}

// replaceRecord applies delete(before)+add(after) as one transaction when
// before is known, so the zone never holds both or neither. Without a
// before record the whole RRset of the new type is swapped atomically.
func (d *dnsManager) replaceRecord(ctx context.Context, fqdn string, before *record, after record) error {
	afterRR, err := d.buildRR(fqdn, after)
	if err != nil {
		return err
	}

	msg := new(dns.Msg)
	msg.SetUpdate(d.zone)

	if before != nil {
		beforeRR, err := d.buildRR(fqdn, *before)
		if err != nil {
			return err
		}
		msg.Remove([]dns.RR{beforeRR})
	} else {
		stub, err := d.rrsetStub(fqdn, after.RecordType)
		if err != nil {
			return err
		}
		msg.RemoveRRset([]dns.RR{stub})
	}
	msg.Insert([]dns.RR{afterRR})

	return d.submit(ctx, msg)
}

// rrsetStub is a header-only RR naming a type at a name, used for the
// delete-an-RRset metavalue.
func (d *dnsManager) rrsetStub(fqdn, recordType string) (dns.RR, error) {
	code, ok := rrTypeCode(recordType)
	if !ok {
		return nil, validationError("unknown record type %q", recordType)
	}
	return &dns.RFC3597{Hdr: dns.RR_Header{
		Name:   normalizeName(fqdn),
		Rrtype: code,
		Class:  dns.ClassINET,
	}}, nil
}

// query resolves one type at a name against the authoritative server and
// returns the rdata strings. errNoAnswer covers NXDOMAIN and an empty
// answer; every other outcome is an upstream failure.
func (d *dnsManager) query(ctx context.Context, fqdn string, qtype uint16) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(normalizeName(fqdn), qtype)

	resp, err := d.backend.exchange(ctx, msg)
	if err != nil {
		return nil, upstreamDNSError("resolve failed: %v", err)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, errNoAnswer
	default:
		return nil, upstreamDNSError("resolve refused: %s", dns.RcodeToString[resp.Rcode])
	}

	var values []string
	for _, rr := range resp.Answer {
		if rr.Header().Rrtype != qtype {
			continue
		}
		values = append(values, rdataString(rr))
	}
	if len(values) == 0 {
		return nil, errNoAnswer
	}
	return values, nil
}

// getRecords resolves the requested types. A type with no answer is
// simply absent from the result; any harder failure aborts the call so a
// partially resolved listing is never returned.
func (d *dnsManager) getRecords(ctx context.Context, fqdn string, types []string) (map[string][]string, error) {
	records := make(map[string][]string)
	for _, recordType := range types {
		code, ok := rrTypeCode(recordType)
		if !ok {
			return nil, validationError("unknown record type %q", recordType)
		}

		values, err := d.query(ctx, fqdn, code)
		if errors.Is(err, errNoAnswer) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records[strings.ToUpper(strings.TrimSpace(recordType))] = values
	}
	return records, nil
}

// metaTypes are codes that name message plumbing, not record data; they
// are never queried.
var metaTypes = map[uint16]bool{
	dns.TypeNone: true,
	dns.TypeOPT:  true,
	dns.TypeTKEY: true,
	dns.TypeTSIG: true,
	dns.TypeIXFR: true,
	dns.TypeAXFR: true,
	dns.TypeANY:  true,
}

func knownRecordTypes() []uint16 {
	codes := make([]uint16, 0, len(dns.TypeToString))
	for code := range dns.TypeToString {
		if metaTypes[code] {
			continue
		}
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

func (d *dnsManager) getAllRecords(ctx context.Context, fqdn string) (map[string][]string, error) {
	records := make(map[string][]string)
	for _, code := range knownRecordTypes() {
		values, err := d.query(ctx, fqdn, code)
		if errors.Is(err, errNoAnswer) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records[dns.TypeToString[code]] = values
	}
	return records, nil
}

// getZone pulls the whole zone over AXFR and reshapes it into one SOA
// block plus a per-name record listing. A failed transfer fails the whole
// request; there are no partial dumps.
func (d *dnsManager) getZone(ctx context.Context, zoneName string) (*zoneDump, error) {
	msg := new(dns.Msg)
	msg.SetAxfr(normalizeName(zoneName))

	rrs, err := d.backend.transfer(ctx, msg)
	if err != nil {
		return nil, upstreamDNSError("zone transfer failed: %v", err)
	}

	dump := &zoneDump{Records: make(map[string][]zoneEntry)}
	for _, rr := range rrs {
		if soa, ok := rr.(*dns.SOA); ok {
			// AXFR opens and closes with the SOA; keep it once.
			if dump.SOA == nil {
				dump.SOA = &soaBlock{
					TTL:     soa.Hdr.Ttl,
					Expire:  soa.Expire,
					Minimum: soa.Minttl,
					Refresh: soa.Refresh,
					Retry:   soa.Retry,
					RName:   soa.Mbox,
					MName:   soa.Ns,
					Serial:  soa.Serial,
				}
			}
			continue
		}

		name := rr.Header().Name
		dump.Records[name] = append(dump.Records[name], zoneEntry{
			Response:   rdataString(rr),
			RecordType: dns.TypeToString[rr.Header().Rrtype],
			TTL:        rr.Header().Ttl,
		})
	}
	return dump, nil
}
