package exhibits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexURL = "https://www.sec.gov/Archives/edgar/data/320193/000032019323000106/0000320193-23-000106-index.htm"

const taggedIndex = `<html><body>
<div id="formDiv">
  <div class="formGrouping">Filing Date</div>
  <p>Document Format Files</p>
  <table class="tableFile" summary="Document Format Files">
    <tr><th scope="col">Seq</th><th scope="col">Description</th><th scope="col">Document</th><th scope="col">Type</th><th scope="col">Size</th></tr>
    <tr>
      <td>1</td><td>10-K</td>
      <td><a href="/ix?doc=/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm">aapl-20230930.htm</a> &nbsp;&nbsp;<span>iXBRL</span></td>
      <td>10-K</td><td>9185432</td>
    </tr>
    <tr>
      <td>2</td><td>EX-4.1</td>
      <td><a href="/Archives/edgar/data/320193/000032019323000106/a10-kexhibit41.htm">a10-kexhibit41.htm</a></td>
      <td>ex-4.1</td><td>84 KB</td>
    </tr>
    <tr>
      <td>3</td><td>  Material   contract </td>
      <td>ex10-1.htm</td>
      <td>EX-10.1</td><td></td>
    </tr>
    <tr><td>Type</td><td>x</td><td><a href="x.htm">x.htm</a></td><td>Type</td><td>1</td></tr>
    <tr><td>4</td><td>no type</td><td><a href="y.htm">y.htm</a></td><td> </td><td>1</td></tr>
    <tr><td>5</td><td>too short</td><td><a href="z.htm">z.htm</a></td></tr>
    <tr><td>6</td><td>no document</td><td></td><td>EX-99.1</td><td>10</td></tr>
  </table>
  <table class="tableFile" summary="Data Files">
    <tr><td>7</td><td>XBRL INSTANCE</td><td><a href="aapl.xml">aapl.xml</a></td><td>EX-101.INS</td><td>500</td></tr>
  </table>
</div>
</body></html>`

func TestExtractDocsTaggedTable(t *testing.T) {
	docs, err := ExtractDocs([]byte(taggedIndex), indexURL)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "1", docs[0].Seq)
	assert.Equal(t, "10-K", docs[0].Type)
	assert.Equal(t, "aapl-20230930.htm", docs[0].Filename)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm", docs[0].URL)
	assert.Equal(t, "9185432", docs[0].SizeText)

	assert.Equal(t, "EX-4.1", docs[1].Type, "type is normalized to upper case")
	assert.Equal(t, "84 KB", docs[1].SizeText)

	assert.Equal(t, "Material contract", docs[2].Description)
	assert.Equal(t, "ex10-1.htm", docs[2].Filename)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/320193/000032019323000106/ex10-1.htm", docs[2].URL,
		"bare filename resolves against the index directory")
	assert.Empty(t, docs[2].SizeText)
}

func TestExtractDocsMarkerPhraseFallback(t *testing.T) {
	page := `<html><body><table><tr><td>
	  <table>
	    <tr><th colspan="5">Document Format Files</th></tr>
	    <tr><td>1</td><td>Press release</td><td><a href="ex99.htm">ex99.htm</a></td><td>EX-99.1</td><td>1200</td></tr>
	  </table>
	</td></tr></table>
	<table><tr><td>9</td><td>other</td><td><a href="o.htm">o.htm</a></td><td>EX-10.9</td><td>1</td></tr></table>
	</body></html>`

	docs, err := ExtractDocs([]byte(page), indexURL)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "EX-99.1", docs[0].Type)
}

func TestExtractDocsWholeDocumentFallback(t *testing.T) {
	page := `<html><body>
	<table><tr><td>1</td><td>Opinion</td><td><a href="ex5.htm">ex5.htm</a></td><td>EX-5.1</td><td>900</td></tr></table>
	<table><tr><td>2</td><td>Consent</td><td><a href="ex23.htm">ex23.htm</a></td><td>EX-23.1</td><td>300</td></tr></table>
	</body></html>`

	docs, err := ExtractDocs([]byte(page), indexURL)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "EX-5.1", docs[0].Type)
	assert.Equal(t, "EX-23.1", docs[1].Type)
}

func TestExtractDocsUnparseableYieldsNothing(t *testing.T) {
	for _, page := range []string{"", "not html at all", "<table><tr><td>only</td></tr></table>"} {
		docs, err := ExtractDocs([]byte(page), indexURL)
		require.NoError(t, err)
		assert.Empty(t, docs, "page %q", page)
	}
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, "EX-10.1", NormalizeType("  ex-10.1 "))
	assert.Equal(t, "DEF 14A", NormalizeType("def\n 14a"))
	assert.Empty(t, NormalizeType("   "))
}
