package web

// Ledger view: one row per entry, updated from the SSE stream.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>trendbot</title>
  <link href="https://fonts.googleapis.com/css2?family=Press+Start+2P&family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root { --bg:#ffffff; --ink:#111111; --ink-mid:#4d4d4d; --panel:#f6f6f6; }
    * { box-sizing:border-box; }
    body {
      margin:0;
      padding:2rem;
      background:var(--bg);
      color:var(--ink);
      font-family:'Space Mono','JetBrains Mono',monospace;
    }
    #app {
      max-width:1200px;
      margin:0 auto;
      background:var(--panel);
      border:3px solid var(--ink);
      padding:2rem;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
    }
    header { display:flex; justify-content:space-between; align-items:center; margin-bottom:1.5rem; }
    .eyebrow {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.6rem;
      text-transform:uppercase;
      letter-spacing:.2em;
      margin:0;
    }
    .status {
      font-size:.65rem;
      text-transform:uppercase;
      border:2px solid var(--ink);
      padding:.4rem .9rem;
      background:#fff;
    }
    table { width:100%; border-collapse:collapse; background:#fff; font-size:.75rem; }
    th, td { border:2px solid var(--ink); padding:.5rem; text-align:left; }
    th { text-transform:uppercase; letter-spacing:.1em; font-size:.6rem; }
    tr.unprotected td { background:#ffe3e6; }
    tr.protected td.status-cell { color:#1b9aaa; font-weight:700; }
    button {
      font-family:inherit;
      font-size:.6rem;
      text-transform:uppercase;
      border:2px solid var(--ink);
      background:#fff;
      cursor:pointer;
      padding:.25rem .6rem;
    }
  </style>
</head>
<body>
  <div id="app">
    <header>
      <p class="eyebrow">trendbot ledger</p>
      <div id="sse-status" class="status">Connecting…</div>
    </header>
    <table>
      <thead>
        <tr><th>Entry</th><th>Pair</th><th>Status</th><th>Qty</th><th>Price</th><th>Stop</th><th>Updated</th><th></th></tr>
      </thead>
      <tbody id="rows"></tbody>
    </table>
  </div>
<script>
const statusEl = document.getElementById('sse-status');
const rows = document.getElementById('rows');
const rowById = new Map();

function render(entry){
  let tr = rowById.get(entry.id);
  if(!tr){
    tr = document.createElement('tr');
    rows.insertBefore(tr, rows.firstChild);
    rowById.set(entry.id, tr);
  }
  tr.className = entry.status;
  tr.innerHTML = '';
  const cells = [
    entry.id.slice(0, 8),
    entry.pair,
    entry.status,
    entry.executed_quantity,
    entry.executed_price,
    entry.stop_price,
    new Date(entry.updated_at).toLocaleTimeString([], { hour12:false })
  ];
  cells.forEach((value, i) => {
    const td = document.createElement('td');
    td.textContent = value;
    if(i === 2){ td.className = 'status-cell'; }
    tr.appendChild(td);
  });
  const action = document.createElement('td');
  if(entry.status === 'unprotected'){
    const btn = document.createElement('button');
    btn.textContent = 'reprotect';
    btn.onclick = async () => {
      const headers = {};
      const token = sessionStorage.getItem('token');
      if (token) headers['Authorization'] = 'Bearer ' + token;
      const resp = await fetch('/positions/reprotect?id=' + encodeURIComponent(entry.id), { method:'POST', headers });
      if (resp.status === 401) {
        const t = prompt('dashboard token');
        if (t) { sessionStorage.setItem('token', t); btn.onclick(); }
      }
    };
    action.appendChild(btn);
  }
  tr.appendChild(action);
}

function connectSSE(){
  const source = new EventSource('/ledger/stream');
  statusEl.textContent = 'Status: receiving data';
  source.addEventListener('ledger', (event) => {
    try{
      render(JSON.parse(event.data).entry);
    }catch(err){
      console.error('payload parse', err);
    }
  });
  source.addEventListener('error', () => {
    statusEl.textContent = 'Reconnecting…';
    source.close();
    setTimeout(connectSSE, 2000);
  });
}

connectSSE();
</script>
</body>
</html>`
