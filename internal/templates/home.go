package templates

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/a-h/templ"
)

// GDPRow is one formatted line of the GDP ranking
type GDPRow struct {
	Rank int
	Name string
	GDP  string
}

// HomeData is everything the landing page shows
type HomeData struct {
	TotalCountries  int
	LastRefreshedAt string
	HasData         bool
	HasImage        bool
	TopByGDP        []GDPRow
}

const homeHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Country Cache</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 60rem; color: #111; }
table { border-collapse: collapse; }
td, th { padding: .25rem .75rem; border-bottom: 1px solid #ddd; text-align: left; }
td.num { text-align: right; }
img { max-width: 100%; border: 1px solid #ddd; margin-top: 1rem; }
</style>
</head>
<body>
<h1>Country Cache</h1>
`

// Home renders the landing page
func Home(data HomeData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, homeHead); err != nil {
			return err
		}

		if !data.HasData {
			_, err := io.WriteString(w, `<p>No countries cached yet. Run <code>POST /countries/refresh</code> to load them.</p>
</body>
</html>
`)
			return err
		}

		if _, err := fmt.Fprintf(w, "<p>Total countries: <strong>%d</strong></p>\n<p>Last refresh: %s</p>\n",
			data.TotalCountries, templ.EscapeString(data.LastRefreshedAt)); err != nil {
			return err
		}

		if _, err := io.WriteString(w, "<h2>Top 5 by Estimated GDP</h2>\n"); err != nil {
			return err
		}

		if len(data.TopByGDP) == 0 {
			if _, err := io.WriteString(w, "<p>No data available</p>\n"); err != nil {
				return err
			}
		} else {
			if _, err := io.WriteString(w, "<table>\n<tr><th>#</th><th>Country</th><th>Estimated GDP</th></tr>\n"); err != nil {
				return err
			}
			for _, row := range data.TopByGDP {
				if _, err := fmt.Fprintf(w, "<tr><td>%d</td><td><a href=\"/countries/%s\">%s</a></td><td class=\"num\">%s</td></tr>\n",
					row.Rank,
					templ.EscapeString(url.PathEscape(row.Name)),
					templ.EscapeString(row.Name),
					templ.EscapeString(row.GDP)); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, "</table>\n"); err != nil {
				return err
			}
		}

		if data.HasImage {
			if _, err := io.WriteString(w, "<img src=\"/countries/image\" alt=\"Country summary\">\n"); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, "</body>\n</html>\n")
		return err
	})
}
