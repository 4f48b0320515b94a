package sqlinline

// QSelectLooksForUser returns one row per look image, oldest look first.
// Looks without images come back once with null image columns.
const QSelectLooksForUser = `--sql 3f1c9a7e-5b2d-4e8a-9c61-0d4b7e2a8f53
select
    l.id::text      as look_id,
    l.title         as title,
    l.description   as description,
    l.created_at    as created_at,
    i.id::text      as image_id,
    i.image_url     as image_url
from looks l
left join look_images i on i.look_id = l.id
where l.user_id = $1::uuid
order by l.created_at asc, l.id asc, i.id asc;
`
