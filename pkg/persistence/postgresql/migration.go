package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create flows table
			CREATE TABLE flows (
				id VARCHAR(255) PRIMARY KEY,
				store_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				status VARCHAR(20) NOT NULL CHECK (status IN ('ACTIVE', 'INACTIVE', 'DRAFT')),
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				created_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_flows_store_status ON flows(store_id, status);
			CREATE INDEX idx_flows_deleted_at ON flows(deleted_at);

			-- Create flow_executions table
			CREATE TABLE flow_executions (
				id VARCHAR(255) PRIMARY KEY,
				flow_id VARCHAR(255) NOT NULL REFERENCES flows(id),
				status VARCHAR(20) NOT NULL CHECK (status IN ('RUNNING', 'SUCCESS', 'FAILED', 'CANCELLED')),
				trigger_type VARCHAR(100) NOT NULL,
				trigger_data JSONB DEFAULT '{}',
				execution_log JSONB NOT NULL DEFAULT '[]',
				error TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				duration_ms BIGINT
			);

			CREATE INDEX idx_flow_executions_flow_id ON flow_executions(flow_id);
			CREATE INDEX idx_flow_executions_status ON flow_executions(status);
			CREATE INDEX idx_flow_executions_started_at ON flow_executions(started_at);
		`,
		2: `
			-- Inventory read models; owned by the CRUD backend when it shares the database
			CREATE TABLE IF NOT EXISTS stores (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255),
				phone VARCHAR(50)
			);

			CREATE TABLE IF NOT EXISTS products (
				id VARCHAR(255) PRIMARY KEY,
				store_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				sku VARCHAR(100),
				stock_quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
				min_stock DOUBLE PRECISION NOT NULL DEFAULT 0,
				max_stock DOUBLE PRECISION NOT NULL DEFAULT 0,
				unit_price DOUBLE PRECISION NOT NULL DEFAULT 0
			);

			CREATE INDEX IF NOT EXISTS idx_products_store_id ON products(store_id);

			CREATE TABLE IF NOT EXISTS movements (
				id VARCHAR(255) PRIMARY KEY,
				store_id VARCHAR(255) NOT NULL,
				product_id VARCHAR(255) NOT NULL,
				type VARCHAR(20) NOT NULL,
				quantity DOUBLE PRECISION NOT NULL,
				unit_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
				created_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS users (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255)
			);
		`,
	}
}
