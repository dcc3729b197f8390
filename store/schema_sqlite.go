package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS projects (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    project_code TEXT NOT NULL UNIQUE,
    project_name TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    created_at   TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    is_deleted   INTEGER NOT NULL DEFAULT 0,
    deleted_at   TEXT
);

CREATE TABLE IF NOT EXISTS end_products (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id      INTEGER NOT NULL REFERENCES projects(id),
    name            TEXT NOT NULL,
    sap_id          TEXT NOT NULL UNIQUE,
    quantity        INTEGER NOT NULL DEFAULT 0,
    completion_date TEXT,
    setup_time_std  REAL NOT NULL DEFAULT 0,
    cycle_time_std  REAL NOT NULL DEFAULT 0,
    fpi_required    INTEGER NOT NULL DEFAULT 1,
    lpi_required    INTEGER NOT NULL DEFAULT 1,
    created_at      TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_end_products_project ON end_products(project_id);

CREATE TABLE IF NOT EXISTS machine_drawings (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    drawing_number TEXT NOT NULL UNIQUE,
    sap_id         TEXT NOT NULL REFERENCES end_products(sap_id),
    created_at     TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_drawings_sap ON machine_drawings(sap_id);

CREATE TABLE IF NOT EXISTS machines (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT NOT NULL UNIQUE,
    status     TEXT NOT NULL DEFAULT 'available',
    active     INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS operator_sessions (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    operator_name     TEXT NOT NULL,
    machine_id        INTEGER NOT NULL REFERENCES machines(id),
    shift             TEXT NOT NULL DEFAULT '',
    active_drawing_id INTEGER REFERENCES machine_drawings(id),
    login_time        TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    logout_time       TEXT,
    is_active         INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_sessions_machine ON operator_sessions(machine_id);

CREATE TABLE IF NOT EXISTS machine_breakdown_log (
    id                     INTEGER PRIMARY KEY AUTOINCREMENT,
    machine_id             INTEGER NOT NULL REFERENCES machines(id),
    start_time             TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    end_time               TEXT,
    reported_by_session_id INTEGER REFERENCES operator_sessions(id),
    notes                  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_breakdowns_machine ON machine_breakdown_log(machine_id);

CREATE TABLE IF NOT EXISTS production_logs (
    id                       INTEGER PRIMARY KEY AUTOINCREMENT,
    machine_id               INTEGER NOT NULL REFERENCES machines(id),
    drawing_id               INTEGER NOT NULL REFERENCES machine_drawings(id),
    operator_session_id      INTEGER NOT NULL REFERENCES operator_sessions(id),
    current_status           TEXT NOT NULL DEFAULT 'setup_started',
    fpi_status               TEXT NOT NULL DEFAULT 'pending',
    lpi_status               TEXT NOT NULL DEFAULT 'pending',
    production_hold_fpi      INTEGER NOT NULL DEFAULT 0,
    run_planned_quantity     INTEGER NOT NULL DEFAULT 0,
    run_completed_quantity   INTEGER NOT NULL DEFAULT 0,
    run_rejected_quantity_fpi INTEGER NOT NULL DEFAULT 0,
    run_rejected_quantity_lpi INTEGER NOT NULL DEFAULT 0,
    batch_number             TEXT NOT NULL DEFAULT '',
    source_rework_item_id    INTEGER REFERENCES rework_queue(id),
    setup_start_time         TEXT,
    setup_end_time           TEXT,
    first_cycle_start_time   TEXT,
    last_cycle_start_time    TEXT,
    last_cycle_end_time      TEXT,
    created_at               TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    closed_at                TEXT
);
CREATE INDEX IF NOT EXISTS idx_logs_machine ON production_logs(machine_id);
CREATE INDEX IF NOT EXISTS idx_logs_drawing ON production_logs(drawing_id);
CREATE INDEX IF NOT EXISTS idx_logs_status ON production_logs(current_status);
CREATE INDEX IF NOT EXISTS idx_logs_session ON production_logs(operator_session_id);

CREATE TABLE IF NOT EXISTS log_history (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    log_id      INTEGER NOT NULL REFERENCES production_logs(id),
    from_status TEXT NOT NULL DEFAULT '',
    to_status   TEXT NOT NULL,
    detail      TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_log_history_log ON log_history(log_id);

CREATE TABLE IF NOT EXISTS log_cycles (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    log_id       INTEGER NOT NULL REFERENCES production_logs(id),
    quantity     INTEGER NOT NULL,
    completed_at TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_log_cycles_log ON log_cycles(log_id);

CREATE TABLE IF NOT EXISTS quality_checks (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    log_id             INTEGER NOT NULL REFERENCES production_logs(id),
    check_type         TEXT NOT NULL,
    result             TEXT NOT NULL,
    inspector          TEXT NOT NULL DEFAULT '',
    quantity_inspected INTEGER NOT NULL DEFAULT 0,
    quantity_rejected  INTEGER NOT NULL DEFAULT 0,
    quantity_to_rework INTEGER NOT NULL DEFAULT 0,
    rejection_reason   TEXT NOT NULL DEFAULT '',
    created_at         TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_quality_checks_log ON quality_checks(log_id);

CREATE TABLE IF NOT EXISTS rework_queue (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    source_log_id         INTEGER NOT NULL REFERENCES production_logs(id),
    quality_check_id      INTEGER NOT NULL REFERENCES quality_checks(id),
    drawing_id            INTEGER NOT NULL REFERENCES machine_drawings(id),
    quantity_to_rework    INTEGER NOT NULL,
    status                TEXT NOT NULL DEFAULT 'pending_approval',
    rejection_reason      TEXT NOT NULL DEFAULT '',
    manager_approved_by   TEXT NOT NULL DEFAULT '',
    manager_approval_time TEXT,
    manager_notes         TEXT NOT NULL DEFAULT '',
    assigned_log_id       INTEGER UNIQUE REFERENCES production_logs(id),
    created_at            TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at            TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_rework_drawing ON rework_queue(drawing_id);
CREATE INDEX IF NOT EXISTS idx_rework_status ON rework_queue(status);

CREATE TABLE IF NOT EXISTS scrap_log (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    quality_check_id  INTEGER NOT NULL REFERENCES quality_checks(id),
    log_id            INTEGER REFERENCES production_logs(id),
    drawing_id        INTEGER NOT NULL REFERENCES machine_drawings(id),
    quantity_scrapped INTEGER NOT NULL,
    reason            TEXT NOT NULL DEFAULT '',
    scrapped_by       TEXT NOT NULL DEFAULT '',
    created_at        TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_scrap_drawing ON scrap_log(drawing_id);

CREATE TABLE IF NOT EXISTS drawing_holds (
    drawing_id      INTEGER PRIMARY KEY REFERENCES machine_drawings(id),
    blocking_log_id INTEGER NOT NULL REFERENCES production_logs(id),
    set_at          TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS downtime_entries (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    log_id     INTEGER NOT NULL REFERENCES production_logs(id),
    category   TEXT NOT NULL,
    minutes    REAL NOT NULL DEFAULT 0,
    noted_by   TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_downtime_log ON downtime_entries(log_id);

CREATE TABLE IF NOT EXISTS outbox (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    topic      TEXT NOT NULL,
    payload    BLOB NOT NULL,
    msg_type   TEXT NOT NULL DEFAULT '',
    source     TEXT NOT NULL DEFAULT '',
    retries    INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    sent_at    TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type TEXT NOT NULL,
    entity_id   INTEGER NOT NULL DEFAULT 0,
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS admin_users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
`
