package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHeader_NameAndAddress(t *testing.T) {
	contacts := FromHeader(`"Jane Doe" <jane@acme.io>`)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Jane Doe", contacts[0].Name)
	assert.Equal(t, "jane@acme.io", contacts[0].Email)
}

func TestFromHeader_BareAddress(t *testing.T) {
	contacts := FromHeader("jane@acme.io")
	require.Len(t, contacts, 1)
	assert.Equal(t, "", contacts[0].Name, "missing display name must be empty string, not absent")
	assert.Equal(t, "jane@acme.io", contacts[0].Email)
}

func TestFromHeader_UnquotedName(t *testing.T) {
	contacts := FromHeader("Jane Doe <jane@acme.io>")
	require.Len(t, contacts, 1)
	assert.Equal(t, "Jane Doe", contacts[0].Name)
	assert.Equal(t, "jane@acme.io", contacts[0].Email)
}

func TestFromHeader_QuotedNameWithComma(t *testing.T) {
	contacts := FromHeader(`"Doe, Jane" <jane@acme.io>, bob@corp.com`)
	require.Len(t, contacts, 2)
	assert.Equal(t, "Doe, Jane", contacts[0].Name, "a quoted comma must not split the entry")
	assert.Equal(t, "jane@acme.io", contacts[0].Email)
	assert.Equal(t, "bob@corp.com", contacts[1].Email)
}

func TestFromHeader_MultipleEntries(t *testing.T) {
	contacts := FromHeader(`"A" <a@x.io>, b@y.io; "C" <c@z.io>`)
	require.Len(t, contacts, 3)
	assert.Equal(t, "a@x.io", contacts[0].Email)
	assert.Equal(t, "b@y.io", contacts[1].Email)
	assert.Equal(t, "C", contacts[2].Name)
}

func TestFromHeader_ExcludesEntriesWithoutAt(t *testing.T) {
	contacts := FromHeader("undisclosed-recipients, jane@acme.io")
	require.Len(t, contacts, 1)
	assert.Equal(t, "jane@acme.io", contacts[0].Email)
}

func TestFromHeader_LowercasesAddress(t *testing.T) {
	contacts := FromHeader("Jane <Jane.Doe@Acme.IO>")
	require.Len(t, contacts, 1)
	assert.Equal(t, "jane.doe@acme.io", contacts[0].Email)
}

func TestFromHeader_Empty(t *testing.T) {
	assert.Empty(t, FromHeader(""))
	assert.Empty(t, FromHeader("   "))
}

func TestFromBody_FindsAddresses(t *testing.T) {
	body := "Best regards,\nJane\njane@acme.io\nTel: 555-0100"
	contacts := FromBody(body)
	require.Len(t, contacts, 1)
	assert.Equal(t, "jane@acme.io", contacts[0].Email)
	assert.Equal(t, "", contacts[0].Name)
}

func TestFromBody_DeduplicatesRepeats(t *testing.T) {
	body := "jane@acme.io wrote:\n> from jane@acme.io\njane@acme.io"
	contacts := FromBody(body)
	assert.Len(t, contacts, 1)
}

func TestFromBody_DecodesQuotedPrintable(t *testing.T) {
	// The address is split across lines by a soft line break
	body := "Contact me at jane=\r\n@acme.io for details"
	contacts := FromBody(body)
	require.Len(t, contacts, 1)
	assert.Equal(t, "jane@acme.io", contacts[0].Email)
}

func TestFromBody_PreservesFirstSeenOrder(t *testing.T) {
	contacts := FromBody("b@y.io then a@x.io then b@y.io")
	require.Len(t, contacts, 2)
	assert.Equal(t, "b@y.io", contacts[0].Email)
	assert.Equal(t, "a@x.io", contacts[1].Email)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "acme.io", DomainOf("jane@acme.io"))
	assert.Equal(t, "acme.io", DomainOf("jane@ACME.IO"))
	assert.Equal(t, "", DomainOf("not-an-address"))
	assert.Equal(t, "", DomainOf("trailing@"))
}
