package report

// Template is the HTML template for the route risk report.
// It is embedded as a Go constant; charts are inline SVG.
const Template = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --border: #e5e7eb;
    --accent: #2563eb;
    --green: #16a34a;
    --red: #dc2626;
    --orange: #ea580c;
    --section-bg: #f8fafc;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.6;
    max-width: 900px;
    margin: 0 auto;
    padding: 20px;
  }
  h1, h2 { font-weight: 600; }
  h1 { font-size: 1.5rem; margin-bottom: 4px; color: var(--accent); }
  h2 { font-size: 1.2rem; margin: 24px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  .muted { color: var(--muted); font-size: 0.85rem; }

  .header {
    display: flex;
    justify-content: space-between;
    align-items: flex-start;
    border-bottom: 3px solid var(--accent);
    padding-bottom: 12px;
    margin-bottom: 16px;
  }
  .header-right { text-align: right; }

  .summary {
    display: flex;
    align-items: center;
    gap: 24px;
  }
  .stat-grid {
    display: grid;
    grid-template-columns: repeat(auto-fill, minmax(140px, 1fr));
    gap: 8px;
    flex: 1;
  }
  .stat {
    background: var(--section-bg);
    padding: 10px;
    border-radius: 6px;
    text-align: center;
  }
  .stat .label { font-size: 0.75rem; color: var(--muted); text-transform: uppercase; }
  .stat .value { font-size: 1.05rem; font-weight: 600; }

  table { width: 100%; border-collapse: collapse; margin: 8px 0 16px; font-size: 0.9rem; }
  th { background: var(--section-bg); text-align: left; padding: 8px; font-weight: 600; }
  td { padding: 8px; border-bottom: 1px solid var(--border); }
  .badge {
    display: inline-block;
    padding: 1px 8px;
    border-radius: 3px;
    font-size: 0.8rem;
    font-weight: 600;
  }
  .badge.high { background: #fef2f2; color: var(--red); }
  .badge.medium { background: #fff7ed; color: var(--orange); }
  .badge.low { background: #dcfce7; color: var(--green); }
  .trend-up { color: var(--red); }
  .trend-down { color: var(--green); }
  .trend-stable { color: var(--muted); }
  .chart-container { text-align: center; margin: 12px 0; overflow-x: auto; }

  .footer {
    margin-top: 32px;
    padding-top: 12px;
    border-top: 1px solid var(--border);
    font-size: 0.75rem;
    color: var(--muted);
  }
</style>
</head>
<body>

<div class="header">
  <div>
    <h1>{{.Title}}</h1>
    <p class="muted">{{.RouteCount}} routes · factors {{.Outcome}}{{if .FactorsAge}} · age {{.FactorsAge}}{{end}}</p>
  </div>
  <div class="header-right">
    <p class="muted">{{.GeneratedAt}}</p>
    {{if .Author}}<p class="muted">{{.Author}}</p>{{end}}
  </div>
</div>

<div class="summary">
  <div class="gauge">{{.GaugeSVG}}</div>
  <div class="stat-grid">
    <div class="stat"><div class="label">Avg score</div><div class="value">{{.AvgScore}}</div></div>
    <div class="stat"><div class="label">Max score</div><div class="value">{{.MaxScore}}</div></div>
    <div class="stat"><div class="label">High / Med / Low</div><div class="value">{{.High}} / {{.Medium}} / {{.Low}}</div></div>
    <div class="stat"><div class="label">Avg ETA</div><div class="value">{{.AvgETA}}</div></div>
    <div class="stat"><div class="label">Avg volume</div><div class="value">{{.AvgVolume}}</div></div>
    <div class="stat"><div class="label">Delayed</div><div class="value">{{.DelayedPct}}</div></div>
  </div>
</div>

<h2>Routes</h2>
<table>
  <tr><th>Route</th><th>Lane</th><th>ETA (days)</th><th>Volume</th><th>Score</th><th>Regional</th><th>External</th></tr>
  {{range .Routes}}
  <tr>
    <td>{{.Name}}</td>
    <td>{{.Lane}}</td>
    <td>{{.ETA}}</td>
    <td>{{.Volume}}</td>
    <td>{{.Score}} <span class="badge {{.Label}}">{{.Label}}</span></td>
    <td>{{.Multiplier}}</td>
    <td>{{.External}}</td>
  </tr>
  {{end}}
</table>

{{if .Factors}}
<h2>Risk factors</h2>
<div class="chart-container">{{.FactorChartSVG}}</div>
<table>
  <tr><th>Factor</th><th>Category</th><th>Value</th><th>Weight</th><th>Score</th><th>Trend</th></tr>
  {{range .Factors}}
  <tr>
    <td>{{.Name}}</td>
    <td>{{.Category}}</td>
    <td>{{.Value}}</td>
    <td>{{.Weight}}</td>
    <td>{{.Score}}</td>
    <td class="trend-{{.Trend}}">{{.Trend}}</td>
  </tr>
  {{end}}
</table>
{{end}}

<div class="footer">
  {{if .CycleID}}Factor cycle {{.CycleID}}. {{end}}Scores combine route distance and volume with regionally weighted external risk factors.
</div>

</body>
</html>
`
