package bms

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleEstimate = `<?xml version="1.0" encoding="UTF-8"?>
<VehicleDamageEstimateAddRq>
  <DocumentInfo>
    <DocumentID>DOC-2024-0042</DocumentID>
    <VendorCode>CCC</VendorCode>
    <CreateDateTime>2024-03-14T09:30:00Z</CreateDateTime>
    <EstimatorID>EST-17</EstimatorID>
  </DocumentInfo>
  <ClaimInfo>
    <ClaimNum>CLM-88213</ClaimNum>
    <PolicyNum>POL-5512</PolicyNum>
    <InsuranceCompany>Acme Mutual</InsuranceCompany>
    <LossDate>2024-03-10</LossDate>
    <DeductibleAmt>$500.00</DeductibleAmt>
  </ClaimInfo>
  <AdminInfo>
    <Owner>
      <Party>
        <PersonInfo><PersonName><FirstName>Jane</FirstName><LastName>Doe</LastName></PersonName></PersonInfo>
        <ContactInfo><Communications><CommEmail>jane@example.com</CommEmail><CommPhoneNum>555-0101</CommPhoneNum></Communications></ContactInfo>
      </Party>
    </Owner>
  </AdminInfo>
  <VehicleInfo>
    <VINInfo><VIN><VINNum>1HGCM82633A123456</VINNum></VIN></VINInfo>
    <VehicleDesc>
      <ModelYear>2003</ModelYear>
      <MakeDesc>Honda</MakeDesc>
      <ModelName>Accord</ModelName>
      <OdometerReading>88210</OdometerReading>
    </VehicleDesc>
  </VehicleInfo>
  <DamageLineInfo>
    <DamageLine>
      <LineNum>1</LineNum>
      <LineDesc>Front Bumper Cover</LineDesc>
      <PartInfo>
        <PartNum>71101-SDA-A00</PartNum>
        <OEMPartNum>71101-SDA-A00ZZ</OEMPartNum>
        <PartType>OEM</PartType>
        <Quantity>1</Quantity>
        <PartPrice>312.50</PartPrice>
      </PartInfo>
      <LaborInfo><LaborHours>2.5</LaborHours><LaborType>Body</LaborType></LaborInfo>
    </DamageLine>
    <DamageLine>
      <LineNum>2</LineNum>
      <LineDesc>Headlamp Assembly RH</LineDesc>
      <PartInfo>
        <PartNum>33101-SDA-A01</PartNum>
        <PartType>LKQ</PartType>
        <Quantity>1</Quantity>
        <PartPrice>1,204.99</PartPrice>
      </PartInfo>
      <LaborInfo><LaborHours>1.0</LaborHours><LaborType>Mechanical</LaborType></LaborInfo>
    </DamageLine>
  </DamageLineInfo>
  <TotalsInfo><TotalAmt>1517.49</TotalAmt></TotalsInfo>
</VehicleDamageEstimateAddRq>`

func newTestParser(maxBytes int64) *Parser {
	return NewParser(Config{MaxDocumentBytes: maxBytes}, zap.NewNop())
}

func TestParser_ParseSampleDocument(t *testing.T) {
	p := newTestParser(0)

	doc, err := p.Parse([]byte(sampleEstimate))
	require.NoError(t, err)

	assert.Equal(t, "DOC-2024-0042", doc.DocumentID)
	assert.Equal(t, "CLM-88213", doc.ClaimNumber)
	assert.Equal(t, "CCC", doc.VendorCode)
	assert.Equal(t, ParseStatusParsed, doc.ParseStatus)
	assert.Equal(t, "1HGCM82633A123456", doc.Vehicle.VIN)
	assert.Equal(t, 2003, doc.Vehicle.Year)
	assert.Equal(t, "Honda", doc.Vehicle.Make)
	assert.Equal(t, "jane@example.com", doc.Customer.Email)
	assert.Equal(t, 500.0, doc.Claim.DeductibleAmount)
	assert.Equal(t, 1517.49, doc.TotalAmount)

	require.Len(t, doc.DamageLines, 2)
	assert.Equal(t, "Front Bumper Cover", doc.DamageLines[0].Description)
	assert.Equal(t, SourceOEM, doc.DamageLines[0].SourceType)
	assert.Equal(t, 312.50, doc.DamageLines[0].UnitCost)
	assert.Equal(t, SourceRecycled, doc.DamageLines[1].SourceType)
	assert.Equal(t, 1204.99, doc.DamageLines[1].UnitCost)
}

func TestParser_ParseIsIdempotent(t *testing.T) {
	p := newTestParser(0)

	first, err := p.Parse([]byte(sampleEstimate))
	require.NoError(t, err)
	second, err := p.Parse([]byte(sampleEstimate))
	require.NoError(t, err)

	if !reflect.DeepEqual(first, second) {
		t.Error("re-parsing identical bytes produced different output")
	}
}

func TestParser_MalformedXML(t *testing.T) {
	p := newTestParser(0)

	_, err := p.Parse([]byte("<VehicleDamageEstimateAddRq><unclosed>"))
	require.Error(t, err)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParser_WrongRootElement(t *testing.T) {
	p := newTestParser(0)

	_, err := p.Parse([]byte("<SomeOtherDocument></SomeOtherDocument>"))
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Reason, "root element")
}

func TestParser_OversizedInput(t *testing.T) {
	p := newTestParser(64)

	_, err := p.Parse([]byte(sampleEstimate))
	require.Error(t, err)

	var limitErr *ResourceLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, int64(64), limitErr.Limit)
}

func TestParser_UnusualButWellFormedContent(t *testing.T) {
	// Unknown elements, empty optional sections and odd ordering must not
	// fail the parse.
	input := `<VehicleDamageEstimateAddRq>
	  <FutureExtension><Nested attr="x">y</Nested></FutureExtension>
	  <VehicleInfo></VehicleInfo>
	  <DocumentInfo><DocumentID>DOC-1</DocumentID></DocumentInfo>
	</VehicleDamageEstimateAddRq>`

	p := newTestParser(0)
	doc, err := p.Parse([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, "DOC-1", doc.DocumentID)
	assert.Empty(t, doc.DamageLines)
}

func TestParser_UnparseableMoneyLeftForValidator(t *testing.T) {
	input := strings.Replace(sampleEstimate, "<PartPrice>312.50</PartPrice>", "<PartPrice>CALL</PartPrice>", 1)

	p := newTestParser(0)
	doc, err := p.Parse([]byte(input))
	require.NoError(t, err)

	require.Len(t, doc.DamageLines, 2)
	assert.Zero(t, doc.DamageLines[0].UnitCost)
	assert.Equal(t, "CALL", doc.DamageLines[0].UnitCostRaw)
}

func TestNormalizeSourceType(t *testing.T) {
	tests := []struct {
		code     string
		expected PartSourceType
	}{
		{"OEM", SourceOEM},
		{"new", SourceOEM},
		{"AFT", SourceAftermarket},
		{"aftermarket", SourceAftermarket},
		{"LKQ", SourceRecycled},
		{"used", SourceRecycled},
		{"", SourceUnknown},
		{"XYZ", SourceUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := normalizeSourceType(tt.code); got != tt.expected {
				t.Errorf("normalizeSourceType(%q) = %v, want %v", tt.code, got, tt.expected)
			}
		})
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in    string
		want  float64
		valid bool
	}{
		{"312.50", 312.50, true},
		{"$300", 300, true},
		{"1,234.56", 1234.56, true},
		{"", 0, false},
		{"CALL", 0, false},
		{"-5", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseMoney(tt.in)
			if ok != tt.valid || got != tt.want {
				t.Errorf("parseMoney(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.valid)
			}
		})
	}
}
