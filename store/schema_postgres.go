package store

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS projects (
    id           BIGSERIAL PRIMARY KEY,
    project_code TEXT NOT NULL UNIQUE,
    project_name TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_deleted   BOOLEAN NOT NULL DEFAULT FALSE,
    deleted_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS end_products (
    id              BIGSERIAL PRIMARY KEY,
    project_id      BIGINT NOT NULL REFERENCES projects(id),
    name            TEXT NOT NULL,
    sap_id          TEXT NOT NULL UNIQUE,
    quantity        BIGINT NOT NULL DEFAULT 0,
    completion_date TIMESTAMPTZ,
    setup_time_std  DOUBLE PRECISION NOT NULL DEFAULT 0,
    cycle_time_std  DOUBLE PRECISION NOT NULL DEFAULT 0,
    fpi_required    BOOLEAN NOT NULL DEFAULT TRUE,
    lpi_required    BOOLEAN NOT NULL DEFAULT TRUE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_end_products_project ON end_products(project_id);

CREATE TABLE IF NOT EXISTS machine_drawings (
    id             BIGSERIAL PRIMARY KEY,
    drawing_number TEXT NOT NULL UNIQUE,
    sap_id         TEXT NOT NULL REFERENCES end_products(sap_id),
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_drawings_sap ON machine_drawings(sap_id);

CREATE TABLE IF NOT EXISTS machines (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    status     TEXT NOT NULL DEFAULT 'available',
    active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS operator_sessions (
    id                BIGSERIAL PRIMARY KEY,
    operator_name     TEXT NOT NULL,
    machine_id        BIGINT NOT NULL REFERENCES machines(id),
    shift             TEXT NOT NULL DEFAULT '',
    active_drawing_id BIGINT REFERENCES machine_drawings(id),
    login_time        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    logout_time       TIMESTAMPTZ,
    is_active         BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_sessions_machine ON operator_sessions(machine_id);

CREATE TABLE IF NOT EXISTS machine_breakdown_log (
    id                     BIGSERIAL PRIMARY KEY,
    machine_id             BIGINT NOT NULL REFERENCES machines(id),
    start_time             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    end_time               TIMESTAMPTZ,
    reported_by_session_id BIGINT REFERENCES operator_sessions(id),
    notes                  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_breakdowns_machine ON machine_breakdown_log(machine_id);

CREATE TABLE IF NOT EXISTS production_logs (
    id                       BIGSERIAL PRIMARY KEY,
    machine_id               BIGINT NOT NULL REFERENCES machines(id),
    drawing_id               BIGINT NOT NULL REFERENCES machine_drawings(id),
    operator_session_id      BIGINT NOT NULL REFERENCES operator_sessions(id),
    current_status           TEXT NOT NULL DEFAULT 'setup_started',
    fpi_status               TEXT NOT NULL DEFAULT 'pending',
    lpi_status               TEXT NOT NULL DEFAULT 'pending',
    production_hold_fpi      BOOLEAN NOT NULL DEFAULT FALSE,
    run_planned_quantity     BIGINT NOT NULL DEFAULT 0,
    run_completed_quantity   BIGINT NOT NULL DEFAULT 0,
    run_rejected_quantity_fpi BIGINT NOT NULL DEFAULT 0,
    run_rejected_quantity_lpi BIGINT NOT NULL DEFAULT 0,
    batch_number             TEXT NOT NULL DEFAULT '',
    source_rework_item_id    BIGINT,
    setup_start_time         TIMESTAMPTZ,
    setup_end_time           TIMESTAMPTZ,
    first_cycle_start_time   TIMESTAMPTZ,
    last_cycle_start_time    TIMESTAMPTZ,
    last_cycle_end_time      TIMESTAMPTZ,
    created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    closed_at                TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_logs_machine ON production_logs(machine_id);
CREATE INDEX IF NOT EXISTS idx_logs_drawing ON production_logs(drawing_id);
CREATE INDEX IF NOT EXISTS idx_logs_status ON production_logs(current_status);
CREATE INDEX IF NOT EXISTS idx_logs_session ON production_logs(operator_session_id);

CREATE TABLE IF NOT EXISTS log_history (
    id          BIGSERIAL PRIMARY KEY,
    log_id      BIGINT NOT NULL REFERENCES production_logs(id),
    from_status TEXT NOT NULL DEFAULT '',
    to_status   TEXT NOT NULL,
    detail      TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_log_history_log ON log_history(log_id);

CREATE TABLE IF NOT EXISTS log_cycles (
    id           BIGSERIAL PRIMARY KEY,
    log_id       BIGINT NOT NULL REFERENCES production_logs(id),
    quantity     BIGINT NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_log_cycles_log ON log_cycles(log_id);

CREATE TABLE IF NOT EXISTS quality_checks (
    id                 BIGSERIAL PRIMARY KEY,
    log_id             BIGINT NOT NULL REFERENCES production_logs(id),
    check_type         TEXT NOT NULL,
    result             TEXT NOT NULL,
    inspector          TEXT NOT NULL DEFAULT '',
    quantity_inspected BIGINT NOT NULL DEFAULT 0,
    quantity_rejected  BIGINT NOT NULL DEFAULT 0,
    quantity_to_rework BIGINT NOT NULL DEFAULT 0,
    rejection_reason   TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_quality_checks_log ON quality_checks(log_id);

CREATE TABLE IF NOT EXISTS rework_queue (
    id                    BIGSERIAL PRIMARY KEY,
    source_log_id         BIGINT NOT NULL REFERENCES production_logs(id),
    quality_check_id      BIGINT NOT NULL REFERENCES quality_checks(id),
    drawing_id            BIGINT NOT NULL REFERENCES machine_drawings(id),
    quantity_to_rework    BIGINT NOT NULL,
    status                TEXT NOT NULL DEFAULT 'pending_approval',
    rejection_reason      TEXT NOT NULL DEFAULT '',
    manager_approved_by   TEXT NOT NULL DEFAULT '',
    manager_approval_time TIMESTAMPTZ,
    manager_notes         TEXT NOT NULL DEFAULT '',
    assigned_log_id       BIGINT UNIQUE REFERENCES production_logs(id),
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_rework_drawing ON rework_queue(drawing_id);
CREATE INDEX IF NOT EXISTS idx_rework_status ON rework_queue(status);

CREATE TABLE IF NOT EXISTS scrap_log (
    id                BIGSERIAL PRIMARY KEY,
    quality_check_id  BIGINT NOT NULL REFERENCES quality_checks(id),
    log_id            BIGINT REFERENCES production_logs(id),
    drawing_id        BIGINT NOT NULL REFERENCES machine_drawings(id),
    quantity_scrapped BIGINT NOT NULL,
    reason            TEXT NOT NULL DEFAULT '',
    scrapped_by       TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_scrap_drawing ON scrap_log(drawing_id);

CREATE TABLE IF NOT EXISTS drawing_holds (
    drawing_id      BIGINT PRIMARY KEY REFERENCES machine_drawings(id),
    blocking_log_id BIGINT NOT NULL REFERENCES production_logs(id),
    set_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS downtime_entries (
    id         BIGSERIAL PRIMARY KEY,
    log_id     BIGINT NOT NULL REFERENCES production_logs(id),
    category   TEXT NOT NULL,
    minutes    DOUBLE PRECISION NOT NULL DEFAULT 0,
    noted_by   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_downtime_log ON downtime_entries(log_id);

CREATE TABLE IF NOT EXISTS outbox (
    id         BIGSERIAL PRIMARY KEY,
    topic      TEXT NOT NULL,
    payload    BYTEA NOT NULL,
    msg_type   TEXT NOT NULL DEFAULT '',
    source     TEXT NOT NULL DEFAULT '',
    retries    INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_log (
    id          BIGSERIAL PRIMARY KEY,
    entity_type TEXT NOT NULL,
    entity_id   BIGINT NOT NULL DEFAULT 0,
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS admin_users (
    id            BIGSERIAL PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
