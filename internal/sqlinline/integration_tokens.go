package sqlinline

// QSelectIntegrationToken reads the stored secret for a provider.
const QSelectIntegrationToken = `--sql c27e94b1-3a6f-4d0e-b815-62f9d0a4e7c8
select token
from integration_tokens
where provider = $1::text
limit 1;
`

// QUpsertIntegrationToken writes or replaces a provider secret and its properties.
const QUpsertIntegrationToken = `--sql e5a0b3d9-8c14-4f72-9e6b-1d7f2c94a305
with incoming as (
    select
        $1::text as provider,
        $2::text as token,
        coalesce($3::jsonb, '{}'::jsonb) as properties
)
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), (select provider from incoming), (select token from incoming), (select properties from incoming), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
